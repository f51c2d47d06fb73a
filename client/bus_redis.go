package client

import (
	"context"
	"encoding/json"

	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/redis"

	"github.com/google/uuid"
)

// taggedEvent wraps an Event with the publisher's identity so an
// endpoint can drop its own publishes, matching MemoryBus semantics
type taggedEvent struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBus carries sync events between client processes on different
// machines through a shared Redis channel
type RedisBus struct {
	client *redis.Client
	origin string
	events chan Event
	cancel context.CancelFunc
	log    *logger.Logger
}

// NewRedisBus subscribes to the shared channel and starts relaying
func NewRedisBus(client *redis.Client, log *logger.Logger) *RedisBus {
	ctx, cancel := context.WithCancel(context.Background())

	bus := &RedisBus{
		client: client,
		origin: uuid.NewString(),
		events: make(chan Event, 32),
		cancel: cancel,
		log:    log,
	}

	go bus.receive(ctx)

	return bus
}

func (b *RedisBus) receive(ctx context.Context) {
	defer close(b.events)

	sub := b.client.Subscribe(ctx, SyncChannelName)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			event, deliver := decodeTagged([]byte(msg.Payload), b.origin, b.log)
			if !deliver {
				continue
			}
			select {
			case b.events <- event:
			default:
				// Drop rather than block the subscriber loop
			}
		case <-ctx.Done():
			return
		}
	}
}

// decodeTagged unpacks a channel payload and reports whether it should
// reach the local endpoint. Own publishes and malformed payloads do not.
func decodeTagged(payload []byte, origin string, log *logger.Logger) (Event, bool) {
	var tagged taggedEvent
	if err := json.Unmarshal(payload, &tagged); err != nil {
		log.Warn("Malformed sync payload", "error", err.Error())
		return Event{}, false
	}
	if tagged.Origin == origin {
		return Event{}, false
	}
	return tagged.Event, true
}

// Publish sends an event to every other endpoint on the channel
func (b *RedisBus) Publish(event Event) error {
	payload, err := json.Marshal(taggedEvent{Origin: b.origin, Event: event})
	if err != nil {
		return err
	}
	return b.client.Publish(context.Background(), SyncChannelName, payload)
}

// Events returns the stream of events published by other endpoints
func (b *RedisBus) Events() <-chan Event {
	return b.events
}

// Close stops the subscriber loop
func (b *RedisBus) Close() error {
	b.cancel()
	return nil
}
