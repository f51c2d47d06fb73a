package client

import (
	"fmt"

	"ai-persona-chat/pkg/logger"
)

// KV keys. Drafts are scoped per user and per character so switching
// accounts or personas never leaks text between conversations.
const (
	keyLastCharacter = "lastCharacter"
	keyTheme         = "theme"
)

func draftKey(userID uint, characterID *uint) string {
	if characterID == nil {
		return fmt.Sprintf("draft:%d:none", userID)
	}
	return fmt.Sprintf("draft:%d:%d", userID, *characterID)
}

// Persist saves UI state locally and mirrors every change to the other
// tabs through the bus. Storage failures are logged and swallowed; a
// broken disk must not break typing. A nil bus disables cross-tab sync
// without disabling storage.
type Persist struct {
	kv     KV
	bus    Bus
	userID uint
	log    *logger.Logger
}

// NewPersist creates a persist layer for the signed-in user
func NewPersist(kv KV, bus Bus, userID uint, log *logger.Logger) *Persist {
	return &Persist{kv: kv, bus: bus, userID: userID, log: log}
}

// SaveDraft stores the draft for a conversation and broadcasts it
func (p *Persist) SaveDraft(characterID *uint, text string) {
	key := draftKey(p.userID, characterID)
	var err error
	if text == "" {
		err = p.kv.Delete(key)
	} else {
		err = p.kv.Set(key, text)
	}
	if err != nil {
		p.log.Warn("Failed to persist draft", "error", err.Error())
	}

	p.publish(Event{Type: EventDraft, CharacterID: characterID, Value: text})
}

// LoadDraft returns the stored draft for a conversation, empty when
// there is none
func (p *Persist) LoadDraft(characterID *uint) string {
	value, err := p.kv.Get(draftKey(p.userID, characterID))
	if err != nil {
		return ""
	}
	return value
}

// SaveLastCharacter remembers the most recently opened persona
func (p *Persist) SaveLastCharacter(value string) {
	if err := p.kv.Set(keyLastCharacter, value); err != nil {
		p.log.Warn("Failed to persist last character", "error", err.Error())
	}
	p.publish(Event{Type: EventLastCharacter, Value: value})
}

// LoadLastCharacter returns the most recently opened persona id
func (p *Persist) LoadLastCharacter() string {
	value, err := p.kv.Get(keyLastCharacter)
	if err != nil {
		return ""
	}
	return value
}

// SaveTheme stores the theme and broadcasts it
func (p *Persist) SaveTheme(value string) {
	if err := p.kv.Set(keyTheme, value); err != nil {
		p.log.Warn("Failed to persist theme", "error", err.Error())
	}
	p.publish(Event{Type: EventTheme, Value: value})
}

// LoadTheme returns the stored theme, empty when unset
func (p *Persist) LoadTheme() string {
	value, err := p.kv.Get(keyTheme)
	if err != nil {
		return ""
	}
	return value
}

// BroadcastLogout tells every other tab to drop its session
func (p *Persist) BroadcastLogout() {
	p.publish(Event{Type: EventLogout})
}

func (p *Persist) publish(event Event) {
	if p.bus == nil {
		return
	}
	if err := p.bus.Publish(event); err != nil {
		p.log.Warn("Failed to broadcast event", "type", event.Type, "error", err.Error())
	}
}
