package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ai-persona-chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClientLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func newTestAPI(t *testing.T, handler http.Handler) *API {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	api, err := NewAPI(server.URL, testClientLogger())
	require.NoError(t, err)
	return api
}

func newTestController(t *testing.T, handler http.Handler) (*Controller, *Store, *MemoryKV) {
	t.Helper()
	api := newTestAPI(t, handler)

	characterID := uint(1)
	store := NewStore(api, characterID)
	kv := NewMemoryKV()
	persist := NewPersist(kv, NewMemoryBus().NewEndpoint(), 1, testClientLogger())
	controller := NewController(api, store, persist, &characterID, nil, testClientLogger())
	return controller, store, kv
}

func chatOKHandler(calls *atomic.Int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reply":     "echo: " + req.Message,
			"createdAt": time.Now().UnixMilli(),
		})
	})
}

func TestSendEmptyIsNoop(t *testing.T) {
	var calls atomic.Int64
	controller, store, _ := newTestController(t, chatOKHandler(&calls))

	require.NoError(t, controller.Send(context.Background(), "   "))
	assert.Empty(t, store.Messages())
	assert.Zero(t, calls.Load())
}

func TestSendTooLongFailsBeforeNetwork(t *testing.T) {
	var calls atomic.Int64
	controller, store, _ := newTestController(t, chatOKHandler(&calls))

	err := controller.Send(context.Background(), strings.Repeat("a", MaxSendLen+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)
	assert.Empty(t, store.Messages())
	assert.Zero(t, calls.Load())
}

func TestSendExactLimitAllowed(t *testing.T) {
	controller, store, _ := newTestController(t, chatOKHandler(nil))

	require.NoError(t, controller.Send(context.Background(), strings.Repeat("한", MaxSendLen)))
	require.Len(t, store.Messages(), 2)
}

func TestSendSuccessAppendsBothTurns(t *testing.T) {
	controller, store, _ := newTestController(t, chatOKHandler(nil))

	require.NoError(t, controller.Send(context.Background(), "hello"))

	messages := store.Messages()
	require.Len(t, messages, 2)

	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, StatusSent, messages[0].Status)
	assert.True(t, strings.HasPrefix(messages[0].ID, "local-"))

	assert.Equal(t, "assistant", messages[1].Role)
	assert.Equal(t, "echo: hello", messages[1].Content)
}

func TestSendClearsDraftImmediately(t *testing.T) {
	controller, _, kv := newTestController(t, chatOKHandler(nil))

	characterID := uint(1)
	require.NoError(t, kv.Set(draftKey(1, &characterID), "hello"))

	require.NoError(t, controller.Send(context.Background(), "hello"))

	_, err := kv.Get(draftKey(1, &characterID))
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestSendExhaustsRetriesThenFails(t *testing.T) {
	var calls atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream down"}`))
	})
	controller, store, _ := newTestController(t, handler)

	start := time.Now()
	err := controller.Send(context.Background(), "hello")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, int64(3), calls.Load())
	// Two backoff waits of 400ms and 800ms sit between the attempts
	assert.GreaterOrEqual(t, elapsed, 1200*time.Millisecond)

	messages := store.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, StatusFailed, messages[0].Status)
	assert.NotEmpty(t, messages[0].Error)
}

func TestSendRetriesClientErrorsToCap(t *testing.T) {
	var calls atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Character not found"}`))
	})
	controller, store, _ := newTestController(t, handler)

	err := controller.Send(context.Background(), "hello")
	require.Error(t, err)
	// A 4xx retries exactly like a network failure would
	assert.Equal(t, int64(3), calls.Load())

	messages := store.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, StatusFailed, messages[0].Status)
	assert.Contains(t, messages[0].Error, "Character not found")
}

func TestRetryReusesContentWithoutDuplicating(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	var gotMessage string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotMessage = req.Message

		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"try later"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reply":     "finally",
			"createdAt": time.Now().UnixMilli(),
		})
	})
	controller, store, _ := newTestController(t, handler)

	require.Error(t, controller.Send(context.Background(), "persist me"))
	require.Len(t, store.Messages(), 1)
	failedID := store.Messages()[0].ID

	fail.Store(false)
	require.NoError(t, controller.Retry(context.Background(), failedID))

	messages := store.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, failedID, messages[0].ID)
	assert.Equal(t, "persist me", messages[0].Content)
	assert.Equal(t, StatusSent, messages[0].Status)
	assert.Empty(t, messages[0].Error)
	assert.Equal(t, "persist me", gotMessage)
	assert.Equal(t, "finally", messages[1].Content)
}

func TestRetryUnknownIDIsNoop(t *testing.T) {
	var calls atomic.Int64
	controller, store, _ := newTestController(t, chatOKHandler(&calls))

	require.NoError(t, controller.Retry(context.Background(), "local-does-not-exist"))
	assert.Empty(t, store.Messages())
	assert.Zero(t, calls.Load())
}

func TestRetrySentMessageIsNoop(t *testing.T) {
	var calls atomic.Int64
	controller, store, _ := newTestController(t, chatOKHandler(&calls))

	require.NoError(t, controller.Send(context.Background(), "hello"))
	sentID := store.Messages()[0].ID
	before := calls.Load()

	require.NoError(t, controller.Retry(context.Background(), sentID))
	assert.Equal(t, before, calls.Load())
	assert.Len(t, store.Messages(), 2)
}

func TestClosedControllerRejectsSend(t *testing.T) {
	var calls atomic.Int64
	controller, store, _ := newTestController(t, chatOKHandler(&calls))

	controller.Close()

	err := controller.Send(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrControllerClosed)
	assert.Empty(t, store.Messages())
	assert.Zero(t, calls.Load())
}

func TestSendRejectsOverlappingSend(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reply":     "slow",
			"createdAt": time.Now().UnixMilli(),
		})
	})
	controller, _, _ := newTestController(t, handler)

	first := make(chan error, 1)
	go func() { first <- controller.Send(context.Background(), "one") }()

	require.Eventually(t, controller.Sending, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, controller.Send(context.Background(), "two"), ErrSendInFlight)

	close(release)
	require.NoError(t, <-first)
	assert.False(t, controller.Sending())
}
