package client

import (
	"sync"
)

// SyncChannelName is the logical channel all tabs share
const SyncChannelName = "ai-chat-sync"

// Event types mirrored across tabs
const (
	EventDraft         = "draft"
	EventLastCharacter = "lastCharacter"
	EventLogout        = "logout"
	EventTheme         = "theme"
)

// Event is one cross-tab state change
type Event struct {
	Type        string `json:"type"`
	CharacterID *uint  `json:"characterId,omitempty"`
	Value       string `json:"value,omitempty"`
}

// Bus is one tab's endpoint on the broadcast channel. Publishing never
// delivers back to the publishing endpoint.
type Bus interface {
	Publish(Event) error
	Events() <-chan Event
	Close() error
}

// MemoryBus connects endpoints within one process, standing in for the
// browser's BroadcastChannel in tests and the terminal client
type MemoryBus struct {
	mu        sync.Mutex
	endpoints map[*memoryEndpoint]bool
}

// NewMemoryBus creates an in-process broadcast bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{endpoints: make(map[*memoryEndpoint]bool)}
}

// NewEndpoint joins the bus as a new tab
func (b *MemoryBus) NewEndpoint() Bus {
	endpoint := &memoryEndpoint{
		bus:    b,
		events: make(chan Event, 32),
	}
	b.mu.Lock()
	b.endpoints[endpoint] = true
	b.mu.Unlock()
	return endpoint
}

func (b *MemoryBus) publish(from *memoryEndpoint, event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for endpoint := range b.endpoints {
		if endpoint == from {
			continue
		}
		select {
		case endpoint.events <- event:
		default:
			// A tab that stopped draining loses events rather than
			// blocking every other tab
		}
	}
}

func (b *MemoryBus) remove(endpoint *memoryEndpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.endpoints[endpoint] {
		delete(b.endpoints, endpoint)
		close(endpoint.events)
	}
}

type memoryEndpoint struct {
	bus    *MemoryBus
	events chan Event
}

func (e *memoryEndpoint) Publish(event Event) error {
	e.bus.publish(e, event)
	return nil
}

func (e *memoryEndpoint) Events() <-chan Event {
	return e.events
}

func (e *memoryEndpoint) Close() error {
	e.bus.remove(e)
	return nil
}

// BridgeHandlers receive events from other tabs. Nil handlers are
// skipped.
type BridgeHandlers struct {
	// OnDraft fires for draft changes of the watched character only
	OnDraft func(value string)
	// OnLastCharacter fires when another tab switches character
	OnLastCharacter func(value string)
	// OnTheme fires when another tab changes the theme
	OnTheme func(value string)
	// OnLogout fires when any tab logs out
	OnLogout func()
}

// Bridge dispatches bus events to UI handlers, filtering draft events
// down to the conversation this tab is showing
type Bridge struct {
	bus         Bus
	characterID *uint
	handlers    BridgeHandlers
	done        chan struct{}
	once        sync.Once
}

// NewBridge creates a bridge for the given conversation. characterID
// may be nil for the persona-less chat view.
func NewBridge(bus Bus, characterID *uint, handlers BridgeHandlers) *Bridge {
	return &Bridge{
		bus:         bus,
		characterID: characterID,
		handlers:    handlers,
		done:        make(chan struct{}),
	}
}

// Watch consumes events until Stop is called or the bus closes
func (b *Bridge) Watch() {
	for {
		select {
		case event, ok := <-b.bus.Events():
			if !ok {
				return
			}
			b.dispatch(event)
		case <-b.done:
			return
		}
	}
}

// Stop ends the watch loop
func (b *Bridge) Stop() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) dispatch(event Event) {
	switch event.Type {
	case EventDraft:
		if b.handlers.OnDraft == nil {
			return
		}
		if !sameCharacter(b.characterID, event.CharacterID) {
			return
		}
		b.handlers.OnDraft(event.Value)
	case EventLastCharacter:
		if b.handlers.OnLastCharacter != nil {
			b.handlers.OnLastCharacter(event.Value)
		}
	case EventTheme:
		if b.handlers.OnTheme != nil {
			b.handlers.OnTheme(event.Value)
		}
	case EventLogout:
		if b.handlers.OnLogout != nil {
			b.handlers.OnLogout()
		}
	}
}

func sameCharacter(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
