package service

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"ai-persona-chat/ai"
	historycache "ai-persona-chat/internal/cache"
	"ai-persona-chat/internal/models"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/observability"
	"ai-persona-chat/pkg/resilience"

	"gorm.io/gorm"
)

// Sentinel errors returned by ChatService
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message too long")
)

// MaxMessageLen bounds a single user message
const MaxMessageLen = 200

// Completer produces one assistant reply for one user message
type Completer interface {
	Complete(ctx context.Context, system, message, model string) (*ai.Completion, error)
}

// ChatReply is the result of a successful send
type ChatReply struct {
	Reply     string `json:"reply"`
	CreatedAt int64  `json:"createdAt"`
}

// ChatService runs the send pipeline: validate, resolve the persona,
// persist the user turn, call the LLM through a circuit breaker,
// persist the assistant turn.
type ChatService struct {
	db         *gorm.DB
	characters *CharacterService
	completer  Completer
	breaker    *resilience.CircuitBreaker
	history    *historycache.HistoryCache
	metrics    *observability.ChatMetrics
	log        *logger.Logger
}

// NewChatService creates a chat service
func NewChatService(
	db *gorm.DB,
	characters *CharacterService,
	completer Completer,
	breaker *resilience.CircuitBreaker,
	history *historycache.HistoryCache,
	metrics *observability.ChatMetrics,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		db:         db,
		characters: characters,
		completer:  completer,
		breaker:    breaker,
		history:    history,
		metrics:    metrics,
		log:        log,
	}
}

// Send processes one user message. characterID selects the persona; nil
// means a plain chat with no system prompt. model optionally overrides
// the configured default.
//
// The user turn is persisted before the upstream call, matching the
// behavior where a failed completion still leaves the user's message in
// history.
func (s *ChatService) Send(ctx context.Context, userID uint, characterID *uint, message, model string) (*ChatReply, error) {
	if utf8.RuneCountInString(message) == 0 {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(message) > MaxMessageLen {
		return nil, ErrMessageTooLong
	}

	var systemPrompt string
	if characterID != nil {
		character, err := s.characters.Get(ctx, userID, *characterID)
		if err != nil {
			return nil, err
		}
		systemPrompt = character.Prompt
	}

	s.metrics.RecordSend(ctx)

	userTurn := models.Message{
		CharacterID: characterID,
		UserID:      userID,
		Role:        models.RoleUser,
		Content:     message,
	}
	if err := s.db.WithContext(ctx).Create(&userTurn).Error; err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, userID, characterID)

	start := time.Now()

	var completion *ai.Completion
	err := s.breaker.Execute(func() error {
		var callErr error
		completion, callErr = s.completer.Complete(ctx, systemPrompt, message, model)
		return callErr
	})
	if err != nil {
		s.metrics.RecordFailure(ctx)
		s.log.Warn("Completion failed",
			"user_id", userID,
			"error", err.Error(),
		)
		return nil, err
	}

	assistantTurn := models.Message{
		CharacterID: characterID,
		UserID:      userID,
		Role:        models.RoleAssistant,
		Content:     completion.Reply,
	}
	if err := s.db.WithContext(ctx).Create(&assistantTurn).Error; err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, userID, characterID)

	s.metrics.RecordCompletion(ctx, time.Since(start), completion.OutputTokens)

	return &ChatReply{
		Reply:     completion.Reply,
		CreatedAt: assistantTurn.CreatedAt,
	}, nil
}

func (s *ChatService) invalidateHistory(ctx context.Context, userID uint, characterID *uint) {
	if characterID == nil {
		return
	}
	s.history.Invalidate(ctx, userID, *characterID)
}
