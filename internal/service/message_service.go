package service

import (
	"context"
	"errors"

	historycache "ai-persona-chat/internal/cache"
	"ai-persona-chat/internal/models"
	"ai-persona-chat/pkg/logger"

	"gorm.io/gorm"
)

// ErrInvalidPageSize is returned when limit is outside 1..100
var ErrInvalidPageSize = errors.New("invalid page size")

// Pagination bounds for message history
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// MessageService pages through chat history
type MessageService struct {
	db         *gorm.DB
	characters *CharacterService
	history    *historycache.HistoryCache
	log        *logger.Logger
}

// NewMessageService creates a message service
func NewMessageService(db *gorm.DB, characters *CharacterService, history *historycache.HistoryCache, log *logger.Logger) *MessageService {
	return &MessageService{
		db:         db,
		characters: characters,
		history:    history,
		log:        log,
	}
}

// History returns up to limit messages for the conversation, in
// ascending creation order. before is an exclusive epoch-ms cursor;
// zero means start from the newest. The newest page is cached in Redis
// and invalidated whenever the conversation grows.
func (s *MessageService) History(ctx context.Context, userID, characterID uint, limit int, before int64) ([]models.Message, error) {
	if limit == 0 {
		limit = DefaultPageSize
	}
	if limit < 1 || limit > MaxPageSize {
		return nil, ErrInvalidPageSize
	}

	// Visibility check doubles as existence check
	if _, err := s.characters.Get(ctx, userID, characterID); err != nil {
		return nil, err
	}

	firstPage := before == 0
	if firstPage {
		if cached, found := s.history.Get(ctx, userID, characterID, limit); found {
			return cached, nil
		}
	}

	query := s.db.WithContext(ctx).
		Where("character_id = ? AND user_id = ?", characterID, userID)
	if before > 0 {
		query = query.Where("created_at < ?", before)
	}

	var messages []models.Message
	err := query.Order("created_at DESC").Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// Query newest-first for the LIMIT, serve oldest-first
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	if firstPage {
		s.history.Set(ctx, userID, characterID, limit, messages)
	}

	return messages, nil
}
