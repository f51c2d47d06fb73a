package api

import (
	"context"
	"errors"
	"net/http"

	"ai-persona-chat/internal/models"
	"ai-persona-chat/internal/service"
	apperrors "ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/jwt"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// UserStore is the slice of UserService the auth handlers need
type UserStore interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// AuthHandler serves registration, login, logout and session refresh
type AuthHandler struct {
	users UserStore
	jwt   *jwt.Service
	log   *logger.Logger
}

// NewAuthHandler creates an auth handler
func NewAuthHandler(users UserStore, jwtService *jwt.Service, log *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwtService, log: log}
}

// RegisterRoutes mounts the auth endpoints
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.POST("/register", h.Register)
	rg.POST("/login", h.Login)
	rg.POST("/logout", h.Logout)
	rg.GET("/me", auth, h.Me)
}

// Register creates an account and starts a session
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_INPUT", "Email and a password of 6 to 100 characters are required"))
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.Error(apperrors.NewConflictError("EMAIL_TAKEN", "An account with this email already exists"))
			return
		}
		c.Error(err)
		return
	}

	if !h.setSessionCookie(c, user) {
		return
	}
	c.JSON(http.StatusCreated, user.ToResponse())
}

// Login starts a session for an existing account
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_INPUT", "Email and password are required"))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.Error(apperrors.NewUnauthorizedError("INVALID_CREDENTIALS", "Invalid email or password"))
			return
		}
		c.Error(err)
		return
	}

	if !h.setSessionCookie(c, user) {
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

// Logout clears the session cookie. Always succeeds, even without a
// valid session.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Me returns the current user and re-issues the cookie, sliding the
// session window forward on every visit
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.Error(apperrors.NewUnauthorizedError("AUTH_REQUIRED", "Not authenticated"))
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.Error(apperrors.NewUnauthorizedError("AUTH_REQUIRED", "Not authenticated"))
			return
		}
		c.Error(err)
		return
	}

	if !h.setSessionCookie(c, user) {
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, user *models.User) bool {
	token, err := h.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.log.LogError(err, "Failed to generate session token", "user_id", user.ID)
		c.Error(apperrors.NewInternalServerError("SERVER_ERROR", "Failed to create session"))
		return false
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AuthCookieName, token, int(h.jwt.Expiry().Seconds()), "/", "", false, true)
	return true
}
