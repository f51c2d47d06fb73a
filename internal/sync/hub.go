// Package sync relays UI state events between a user's open tabs. A tab
// publishes a draft, theme, last-character or logout event over its
// websocket and every other tab of the same user receives it. Events
// are never echoed back to the publishing connection.
package sync

import (
	"encoding/json"
	"sync"

	"ai-persona-chat/pkg/logger"
)

// Event types relayed between tabs
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

// Valid reports whether the event type is one of the relayed kinds
func (e Event) Valid() bool {
	switch e.Type {
	case EventDraft, EventLastCharacter, EventLogout, EventTheme:
		return true
	}
	return false
}

type inbound struct {
	from  *Client
	event Event
}

// Hub groups connections by user and fans events out within the group
type Hub struct {
	register   chan *Client
	unregister chan *Client
	relay      chan inbound

	mu      sync.Mutex
	byUser  map[uint]map[*Client]bool
	log     *logger.Logger
	closing chan struct{}
}

// NewHub creates a sync hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		relay:      make(chan inbound, 64),
		byUser:     make(map[uint]map[*Client]bool),
		log:        log,
		closing:    make(chan struct{}),
	}
}

// Run processes registrations and relays until Stop is called
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.byUser[client.userID] == nil {
				h.byUser[client.userID] = make(map[*Client]bool)
			}
			h.byUser[client.userID][client] = true
			h.mu.Unlock()
			h.log.Debug("Sync client connected", "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if peers, ok := h.byUser[client.userID]; ok {
				if _, ok := peers[client]; ok {
					delete(peers, client)
					close(client.send)
					if len(peers) == 0 {
						delete(h.byUser, client.userID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.relay:
			h.deliver(msg)

		case <-h.closing:
			return
		}
	}
}

// Stop terminates the Run loop
func (h *Hub) Stop() {
	close(h.closing)
}

// deliver sends the event to every connection of the same user except
// the publisher
func (h *Hub) deliver(msg inbound) {
	payload, err := json.Marshal(msg.event)
	if err != nil {
		h.log.Warn("Failed to encode sync event", "error", err.Error())
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	peers := h.byUser[msg.from.userID]
	for peer := range peers {
		if peer == msg.from {
			continue
		}
		select {
		case peer.send <- payload:
		default:
			// Slow tab, drop the connection rather than block the hub
			close(peer.send)
			delete(peers, peer)
		}
	}
}
