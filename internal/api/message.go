package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"ai-persona-chat/internal/models"
	"ai-persona-chat/internal/service"
	apperrors "ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// HistoryStore is the slice of MessageService the handler needs
type HistoryStore interface {
	History(ctx context.Context, userID, characterID uint, limit int, before int64) ([]models.Message, error)
}

// MessageHandler serves paginated chat history
type MessageHandler struct {
	messages HistoryStore
	log      *logger.Logger
}

// NewMessageHandler creates a message handler
func NewMessageHandler(messages HistoryStore, log *logger.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, log: log}
}

// RegisterRoutes mounts the message endpoints
func (h *MessageHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
}

// List returns up to limit messages older than the before cursor, in
// ascending creation order
func (h *MessageHandler) List(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	characterID, err := strconv.ParseUint(c.Query("characterId"), 10, 32)
	if err != nil || characterID == 0 {
		c.Error(apperrors.NewBadRequestError("INVALID_QUERY", "characterId is required"))
		return
	}

	limit := service.DefaultPageSize
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			c.Error(apperrors.NewBadRequestError("INVALID_QUERY", "limit must be an integer"))
			return
		}
	}

	var before int64
	if raw := c.Query("before"); raw != "" {
		before, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.Error(apperrors.NewBadRequestError("INVALID_QUERY", "before must be an epoch-ms integer"))
			return
		}
	}

	messages, err := h.messages.History(c.Request.Context(), userID, uint(characterID), limit, before)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidPageSize):
			c.Error(apperrors.NewBadRequestError("INVALID_QUERY", "limit must be between 1 and 100"))
		case errors.Is(err, service.ErrCharacterNotFound):
			c.Error(apperrors.NewNotFoundError("CHARACTER_NOT_FOUND", "Character not found"))
		default:
			c.Error(err)
		}
		return
	}

	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}
