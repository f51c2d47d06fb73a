package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-persona-chat/internal/models"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/redis"
)

// HistoryCache keeps the newest page of a conversation in Redis. Only
// the first page (no cursor) is cached; older pages are cold reads.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewHistoryCache creates a history cache. A nil client disables
// caching, every lookup misses.
func NewHistoryCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *HistoryCache {
	return &HistoryCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

func historyKey(userID, characterID uint, limit int) string {
	return fmt.Sprintf("history:%d:%d:%d", userID, characterID, limit)
}

// Get returns the cached first page, or (nil, false) on a miss
func (c *HistoryCache) Get(ctx context.Context, userID, characterID uint, limit int) ([]models.Message, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, historyKey(userID, characterID, limit))
	if err != nil {
		if !redis.IsNil(err) {
			c.log.Warn("History cache read failed", "error", err.Error())
		}
		return nil, false
	}

	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		c.log.Warn("History cache entry corrupt, dropping", "error", err.Error())
		_ = c.client.Del(ctx, historyKey(userID, characterID, limit))
		return nil, false
	}

	return messages, true
}

// Set stores the first page of a conversation
func (c *HistoryCache) Set(ctx context.Context, userID, characterID uint, limit int, messages []models.Message) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(messages)
	if err != nil {
		c.log.Warn("History cache encode failed", "error", err.Error())
		return
	}

	if err := c.client.Set(ctx, historyKey(userID, characterID, limit), data, c.ttl); err != nil {
		c.log.Warn("History cache write failed", "error", err.Error())
	}
}

// Invalidate drops all cached pages for a conversation. Limits are
// capped at 100 so the key space is small enough to enumerate.
func (c *HistoryCache) Invalidate(ctx context.Context, userID, characterID uint) {
	if c == nil || c.client == nil {
		return
	}

	keys := make([]string, 0, 100)
	for limit := 1; limit <= 100; limit++ {
		keys = append(keys, historyKey(userID, characterID, limit))
	}

	if err := c.client.Del(ctx, keys...); err != nil {
		c.log.Warn("History cache invalidation failed", "error", err.Error())
	}
}
