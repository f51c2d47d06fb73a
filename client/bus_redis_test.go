package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTaggedDropsOwnOrigin(t *testing.T) {
	payload, err := json.Marshal(taggedEvent{
		Origin: "tab-a",
		Event:  Event{Type: EventDraft, Value: "hello"},
	})
	require.NoError(t, err)

	_, deliver := decodeTagged(payload, "tab-a", testClientLogger())
	assert.False(t, deliver)
}

func TestDecodeTaggedDeliversForeignOrigin(t *testing.T) {
	characterID := uint(7)
	payload, err := json.Marshal(taggedEvent{
		Origin: "tab-a",
		Event:  Event{Type: EventDraft, CharacterID: &characterID, Value: "hello"},
	})
	require.NoError(t, err)

	event, deliver := decodeTagged(payload, "tab-b", testClientLogger())
	require.True(t, deliver)
	assert.Equal(t, EventDraft, event.Type)
	require.NotNil(t, event.CharacterID)
	assert.Equal(t, uint(7), *event.CharacterID)
	assert.Equal(t, "hello", event.Value)
}

func TestDecodeTaggedRejectsMalformedPayload(t *testing.T) {
	_, deliver := decodeTagged([]byte("not json"), "tab-a", testClientLogger())
	assert.False(t, deliver)
}
