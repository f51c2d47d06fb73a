package sync

import (
	"encoding/json"
	"testing"
	"time"

	"ai-persona-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, userID uint) *Client {
	return &Client{
		userID: userID,
		send:   make(chan []byte, 16),
		hub:    hub,
	}
}

func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case data := <-c.send:
		var event Event
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected event delivered: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRelaysToOtherTabsOfSameUser(t *testing.T) {
	hub := NewHub(logger.New(logger.Config{Level: "error"}))
	go hub.Run()
	defer hub.Stop()

	tabA := newTestClient(hub, 1)
	tabB := newTestClient(hub, 1)
	otherUser := newTestClient(hub, 2)

	hub.register <- tabA
	hub.register <- tabB
	hub.register <- otherUser

	characterID := uint(7)
	hub.relay <- inbound{from: tabA, event: Event{
		Type:        EventDraft,
		CharacterID: &characterID,
		Value:       "hello from tab A",
	}}

	got := recv(t, tabB)
	assert.Equal(t, EventDraft, got.Type)
	require.NotNil(t, got.CharacterID)
	assert.Equal(t, characterID, *got.CharacterID)
	assert.Equal(t, "hello from tab A", got.Value)

	// The publisher and other users hear nothing
	assertSilent(t, tabA)
	assertSilent(t, otherUser)
}

func TestHubRelaysLogoutToAllPeers(t *testing.T) {
	hub := NewHub(logger.New(logger.Config{Level: "error"}))
	go hub.Run()
	defer hub.Stop()

	tabA := newTestClient(hub, 1)
	tabB := newTestClient(hub, 1)
	tabC := newTestClient(hub, 1)

	hub.register <- tabA
	hub.register <- tabB
	hub.register <- tabC

	hub.relay <- inbound{from: tabA, event: Event{Type: EventLogout}}

	assert.Equal(t, EventLogout, recv(t, tabB).Type)
	assert.Equal(t, EventLogout, recv(t, tabC).Type)
	assertSilent(t, tabA)
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub(logger.New(logger.Config{Level: "error"}))
	go hub.Run()
	defer hub.Stop()

	tabA := newTestClient(hub, 1)
	tabB := newTestClient(hub, 1)

	hub.register <- tabA
	hub.register <- tabB
	hub.unregister <- tabB

	// Wait for the closed send channel as the unregister signal
	select {
	case _, open := <-tabB.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}

	hub.relay <- inbound{from: tabA, event: Event{Type: EventTheme, Value: "dark"}}
	assertSilent(t, tabA)
}

func TestEventValid(t *testing.T) {
	assert.True(t, Event{Type: EventDraft}.Valid())
	assert.True(t, Event{Type: EventLastCharacter}.Valid())
	assert.True(t, Event{Type: EventLogout}.Valid())
	assert.True(t, Event{Type: EventTheme}.Valid())
	assert.False(t, Event{Type: "chat"}.Valid())
	assert.False(t, Event{}.Valid())
}
