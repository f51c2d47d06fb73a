package api

import (
	"context"
	"errors"
	"net/http"

	"ai-persona-chat/ai"
	"ai-persona-chat/internal/service"
	apperrors "ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/middleware"
	"ai-persona-chat/pkg/resilience"

	"github.com/gin-gonic/gin"
)

// Sender is the slice of ChatService the handler needs
type Sender interface {
	Send(ctx context.Context, userID uint, characterID *uint, message, model string) (*service.ChatReply, error)
}

// ChatHandler serves the send endpoint
type ChatHandler struct {
	chat Sender
	log  *logger.Logger
}

// NewChatHandler creates a chat handler
func NewChatHandler(chat Sender, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: log}
}

// RegisterRoutes mounts the chat endpoint
func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Send)
}

type chatRequest struct {
	CharacterID *uint  `json:"characterId"`
	Message     string `json:"message" binding:"required"`
	Model       string `json:"model"`
}

// Send forwards one user message to the LLM and returns the reply
func (h *ChatHandler) Send(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewBadRequestError("INVALID_INPUT", "message is required"))
		return
	}

	reply, err := h.chat.Send(c.Request.Context(), userID, req.CharacterID, req.Message, req.Model)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reply)
}

func (h *ChatHandler) respondError(c *gin.Context, err error) {
	var upstream *ai.UpstreamError

	switch {
	case errors.Is(err, service.ErrEmptyMessage), errors.Is(err, service.ErrMessageTooLong):
		c.Error(apperrors.NewBadRequestError("INVALID_INPUT",
			"message must be between 1 and 200 characters"))
	case errors.Is(err, service.ErrCharacterNotFound):
		c.Error(apperrors.NewNotFoundError("CHARACTER_NOT_FOUND", "Character not found"))
	case errors.Is(err, ai.ErrMissingAPIKey):
		c.Error(apperrors.NewInternalServerError("LLM_NOT_CONFIGURED",
			"The LLM API key is not configured on the server"))
	case errors.As(err, &upstream):
		c.Error(apperrors.NewBadGatewayError("LLM_UPSTREAM_ERROR", upstream.Body))
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.Error(apperrors.NewBadGatewayError("LLM_UNAVAILABLE",
			"The LLM upstream is temporarily unavailable"))
	default:
		c.Error(err)
	}
}
