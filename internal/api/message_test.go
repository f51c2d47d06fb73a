package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-persona-chat/internal/models"
	"ai-persona-chat/internal/service"
	"ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/jwt"
	"ai-persona-chat/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHistoryStore struct {
	messages  []models.Message
	err       error
	gotChar   uint
	gotLimit  int
	gotBefore int64
}

func (f *fakeHistoryStore) History(ctx context.Context, userID, characterID uint, limit int, before int64) ([]models.Message, error) {
	f.gotChar = characterID
	f.gotLimit = limit
	f.gotBefore = before
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func newMessageRouter(t *testing.T, store HistoryStore) (*gin.Engine, *http.Cookie) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtService := jwt.NewService("test-secret", time.Hour)
	token, err := jwtService.GenerateToken(5, "history@example.com")
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(errors.ErrorHandler())

	group := engine.Group("/api/messages")
	group.Use(middleware.JWTAuthMiddleware(jwtService, testLogger()))
	NewMessageHandler(store, testLogger()).RegisterRoutes(group)

	return engine, &http.Cookie{Name: middleware.AuthCookieName, Value: token}
}

func getMessages(engine *gin.Engine, cookie *http.Cookie, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/messages"+query, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestMessageListDefaults(t *testing.T) {
	store := &fakeHistoryStore{messages: []models.Message{
		{ID: 1, Role: models.RoleUser, Content: "hi", CreatedAt: 100},
		{ID: 2, Role: models.RoleAssistant, Content: "hello", CreatedAt: 200},
	}}
	engine, cookie := newMessageRouter(t, store)

	rec := getMessages(engine, cookie, "?characterId=3")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, uint(3), store.gotChar)
	assert.Equal(t, service.DefaultPageSize, store.gotLimit)
	assert.Zero(t, store.gotBefore)

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0]["role"])
	assert.Equal(t, float64(100), out[0]["created_at"])
}

func TestMessageListCursorAndLimit(t *testing.T) {
	store := &fakeHistoryStore{}
	engine, cookie := newMessageRouter(t, store)

	rec := getMessages(engine, cookie, "?characterId=3&limit=30&before=1700000000000")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 30, store.gotLimit)
	assert.Equal(t, int64(1700000000000), store.gotBefore)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestMessageListMissingCharacterID(t *testing.T) {
	engine, cookie := newMessageRouter(t, &fakeHistoryStore{})

	rec := getMessages(engine, cookie, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageListInvalidLimit(t *testing.T) {
	store := &fakeHistoryStore{err: service.ErrInvalidPageSize}
	engine, cookie := newMessageRouter(t, store)

	rec := getMessages(engine, cookie, "?characterId=3&limit=101")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessageListUnknownCharacter(t *testing.T) {
	store := &fakeHistoryStore{err: service.ErrCharacterNotFound}
	engine, cookie := newMessageRouter(t, store)

	rec := getMessages(engine, cookie, "?characterId=404")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessageListRequiresAuth(t *testing.T) {
	engine, _ := newMessageRouter(t, &fakeHistoryStore{})

	rec := getMessages(engine, nil, "?characterId=3")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
