package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"ai-persona-chat/internal/models"
	"ai-persona-chat/internal/service"
	apperrors "ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// thumbnailExtensions maps accepted upload MIME types to extensions
var thumbnailExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// CharacterStore is the slice of CharacterService the handlers need
type CharacterStore interface {
	List(ctx context.Context, userID uint) ([]models.Character, error)
	Create(ctx context.Context, userID uint, name, prompt string, thumbnailPath *string) (*models.Character, error)
	Delete(ctx context.Context, userID, characterID uint) (*models.Character, error)
}

// CharacterHandler serves persona CRUD
type CharacterHandler struct {
	characters   CharacterStore
	uploadsDir   string
	maxThumbSize int64
	log          *logger.Logger
}

// NewCharacterHandler creates a character handler
func NewCharacterHandler(characters CharacterStore, uploadsDir string, maxThumbSize int64, log *logger.Logger) *CharacterHandler {
	return &CharacterHandler{
		characters:   characters,
		uploadsDir:   uploadsDir,
		maxThumbSize: maxThumbSize,
		log:          log,
	}
}

// RegisterRoutes mounts the character endpoints
func (h *CharacterHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.DELETE("/:id", h.Delete)
}

// List returns default personas plus the caller's own
func (h *CharacterHandler) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	characters, err := h.characters.List(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]models.CharacterResponse, 0, len(characters))
	for i := range characters {
		out = append(out, characters[i].ToResponse(userID))
	}
	c.JSON(http.StatusOK, out)
}

// Create stores a new persona from a multipart form with an optional
// thumbnail image
func (h *CharacterHandler) Create(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	name := c.PostForm("name")
	prompt := c.PostForm("prompt")

	var thumbnailPath *string
	file, err := c.FormFile("thumbnail")
	if err == nil {
		saved, saveErr := h.saveThumbnail(c, file)
		if saveErr != nil {
			c.Error(saveErr)
			return
		}
		thumbnailPath = &saved
	}

	character, err := h.characters.Create(c.Request.Context(), userID, name, prompt, thumbnailPath)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCharacter) {
			h.removeThumbnail(thumbnailPath)
			c.Error(apperrors.NewBadRequestError("INVALID_INPUT", err.Error()))
			return
		}
		h.removeThumbnail(thumbnailPath)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, character.ToResponse(userID))
}

// Delete removes an owned persona along with its chat history and
// thumbnail. Defaults and other users' personas are off limits.
func (h *CharacterHandler) Delete(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.Error(apperrors.NewBadRequestError("INVALID_INPUT", "Invalid character id"))
		return
	}

	character, err := h.characters.Delete(c.Request.Context(), userID, uint(id))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCharacterNotFound):
			c.Error(apperrors.NewNotFoundError("CHARACTER_NOT_FOUND", "Character not found"))
		case errors.Is(err, service.ErrNotOwner):
			c.Error(apperrors.NewError(http.StatusForbidden, "NOT_OWNER", "Only the owner can delete a character"))
		default:
			c.Error(err)
		}
		return
	}

	h.removeThumbnail(character.ThumbnailPath)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// saveThumbnail validates and stores an uploaded image, returning the
// relative filename under the uploads dir
func (h *CharacterHandler) saveThumbnail(c *gin.Context, file *multipart.FileHeader) (string, error) {
	if file.Size > h.maxThumbSize {
		return "", apperrors.NewBadRequestError("THUMBNAIL_TOO_LARGE",
			fmt.Sprintf("Thumbnail must be at most %d bytes", h.maxThumbSize))
	}

	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	// Sniff the actual content rather than trusting the declared type
	head := make([]byte, 512)
	n, err := src.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	contentType := http.DetectContentType(head[:n])

	ext, ok := thumbnailExtensions[contentType]
	if !ok {
		return "", apperrors.NewBadRequestError("INVALID_THUMBNAIL", "Thumbnail must be a PNG, JPEG or WebP image")
	}

	if err := os.MkdirAll(h.uploadsDir, 0o755); err != nil {
		return "", err
	}

	name := uniqueThumbnailName(ext)
	dst, err := os.Create(filepath.Join(h.uploadsDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := dst.Write(head[:n]); err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}

	return name, nil
}

func (h *CharacterHandler) removeThumbnail(path *string) {
	if path == nil {
		return
	}
	if err := os.Remove(filepath.Join(h.uploadsDir, *path)); err != nil {
		h.log.Warn("Failed to remove orphaned thumbnail", "path", *path, "error", err.Error())
	}
}

// uniqueThumbnailName builds the stored filename for an upload
func uniqueThumbnailName(ext string) string {
	return fmt.Sprintf("%s%s", uuid.NewString(), ext)
}
