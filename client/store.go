package client

import (
	"context"
	"strconv"
	"sync"
)

// InitialPageSize is the history page size used by the UI
const InitialPageSize = 30

// Message delivery status for user-authored messages
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// ChatMessage is one entry in the conversation view. Optimistic
// messages carry a local id until the server confirms them.
type ChatMessage struct {
	ID        string
	Role      string
	Content   string
	CreatedAt int64
	Status    Status
	Error     string
}

func fromServer(m ServerMessage) ChatMessage {
	return ChatMessage{
		ID:        strconv.FormatUint(uint64(m.ID), 10),
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Status:    StatusSent,
	}
}

// Store holds the conversation in ascending creation order and pages
// backwards through history with an exclusive cursor.
type Store struct {
	mu          sync.Mutex
	api         *API
	characterID uint
	messages    []ChatMessage
	hasMore     bool
	loading     bool
	loaded      bool
}

// NewStore creates a store for one conversation
func NewStore(api *API, characterID uint) *Store {
	return &Store{
		api:         api,
		characterID: characterID,
	}
}

// Messages returns a copy of the current conversation, oldest first
func (s *Store) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// HasMore reports whether older history may exist
func (s *Store) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Loading reports whether a history fetch is in flight
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LoadInitial fetches the newest page, replacing any current content
func (s *Store) LoadInitial(ctx context.Context) error {
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	page, err := s.api.Messages(ctx, s.characterID, InitialPageSize, 0)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return err
	}

	s.messages = make([]ChatMessage, 0, len(page))
	for _, m := range page {
		s.messages = append(s.messages, fromServer(m))
	}
	// A full page suggests more history behind it. A final page of
	// exactly this size costs one extra empty fetch, which is fine.
	s.hasMore = len(page) == InitialPageSize
	s.loaded = true
	return nil
}

// LoadOlder prepends the page before the oldest loaded message. It is
// a no-op while a fetch is in flight or when history is exhausted.
func (s *Store) LoadOlder(ctx context.Context) error {
	s.mu.Lock()
	if s.loading || !s.loaded || !s.hasMore {
		s.mu.Unlock()
		return nil
	}

	var before int64
	for _, m := range s.messages {
		// The cursor is the oldest server-confirmed timestamp;
		// optimistic pending messages have no place in history yet
		if m.Status != StatusPending {
			before = m.CreatedAt
			break
		}
	}
	if before == 0 {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	s.mu.Unlock()

	page, err := s.api.Messages(ctx, s.characterID, InitialPageSize, before)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		return err
	}

	s.hasMore = len(page) == InitialPageSize

	if len(page) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(s.messages))
	for _, m := range s.messages {
		seen[m.ID] = true
	}

	older := make([]ChatMessage, 0, len(page))
	for _, m := range page {
		converted := fromServer(m)
		if seen[converted.ID] {
			continue
		}
		older = append(older, converted)
	}

	s.messages = append(older, s.messages...)
	return nil
}

// Append adds a message to the end of the conversation
func (s *Store) Append(m ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
}

// Update applies fn to the message with the given id. Returns false
// when the id is unknown.
func (s *Store) Update(id string, fn func(*ChatMessage)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].ID == id {
			fn(&s.messages[i])
			return true
		}
	}
	return false
}

// Get returns the message with the given id
func (s *Store) Get(id string) (ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return ChatMessage{}, false
}
