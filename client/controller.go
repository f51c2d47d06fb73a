package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"ai-persona-chat/pkg/logger"

	"github.com/google/uuid"
)

// MaxSendLen mirrors the server's message limit so oversized input
// fails before any network traffic
const MaxSendLen = 200

// Controller errors
var (
	ErrMessageTooLong   = errors.New("message exceeds maximum length")
	ErrControllerClosed = errors.New("controller closed")
	ErrSendInFlight     = errors.New("a send is already in flight")
)

// Controller drives one conversation: optimistic sends, retries of
// failed messages and draft clearing. All mutations land in the Store;
// the UI renders from there.
type Controller struct {
	api         *API
	store       *Store
	persist     *Persist
	characterID *uint

	mu      sync.Mutex
	closed  bool
	sending bool

	// onUpdate fires after every store mutation so the UI can rerender
	// and the scroll coordinator can reposition. May be nil.
	onUpdate func()

	log *logger.Logger
}

// NewController creates a controller for one conversation
func NewController(api *API, store *Store, persist *Persist, characterID *uint, onUpdate func(), log *logger.Logger) *Controller {
	return &Controller{
		api:         api,
		store:       store,
		persist:     persist,
		characterID: characterID,
		onUpdate:    onUpdate,
		log:         log,
	}
}

// Send submits one user message. Empty input is a no-op. Oversized
// input fails before anything is appended or sent. The draft is
// cleared immediately so a crash mid-send never resurrects sent text.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) > MaxSendLen {
		return ErrMessageTooLong
	}

	if err := c.begin(); err != nil {
		return err
	}

	id := "local-" + uuid.NewString()
	c.store.Append(ChatMessage{
		ID:        id,
		Role:      "user",
		Content:   text,
		CreatedAt: time.Now().UnixMilli(),
		Status:    StatusPending,
	})
	c.persist.SaveDraft(c.characterID, "")
	c.notify()

	return c.deliver(ctx, id, text)
}

// Retry resends a failed message with its original content. Unknown
// ids and messages that are not failed are no-ops.
func (c *Controller) Retry(ctx context.Context, id string) error {
	message, ok := c.store.Get(id)
	if !ok || message.Status != StatusFailed {
		return nil
	}

	if err := c.begin(); err != nil {
		return err
	}

	c.store.Update(id, func(m *ChatMessage) {
		m.Status = StatusPending
		m.Error = ""
	})
	c.notify()

	return c.deliver(ctx, id, message.Content)
}

// begin claims the single send slot. One network attempt per
// conversation at a time; the UI disables the send affordance while
// Sending reports true.
func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrControllerClosed
	}
	if c.sending {
		return ErrSendInFlight
	}
	c.sending = true
	return nil
}

// Sending reports whether a send or retry is in flight
func (c *Controller) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// deliver runs the API call and settles the optimistic message
func (c *Controller) deliver(ctx context.Context, id, text string) error {
	result, err := c.api.Chat(ctx, c.characterID, text)

	c.mu.Lock()
	c.sending = false
	c.mu.Unlock()

	if c.isClosed() {
		// The conversation was torn down mid-flight, leave the store alone
		return ErrControllerClosed
	}

	if err != nil {
		c.store.Update(id, func(m *ChatMessage) {
			m.Status = StatusFailed
			m.Error = err.Error()
		})
		c.notify()
		return err
	}

	c.store.Update(id, func(m *ChatMessage) {
		m.Status = StatusSent
	})
	c.store.Append(ChatMessage{
		ID:        "local-" + uuid.NewString(),
		Role:      "assistant",
		Content:   result.Reply,
		CreatedAt: result.CreatedAt,
		Status:    StatusSent,
	})
	c.notify()
	return nil
}

// Close stops the controller. In-flight sends finish their request but
// no longer touch the store.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}
