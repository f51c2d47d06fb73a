package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-persona-chat/internal/api"
	"ai-persona-chat/internal/sync"
	"ai-persona-chat/pkg/config"
	"ai-persona-chat/pkg/health"
	"ai-persona-chat/pkg/jwt"
	"ai-persona-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New(logger.Config{Level: "error"})
	jwtService := jwt.NewService("test-secret", time.Hour)
	checker := health.NewChecker(log, time.Minute)
	hub := sync.NewHub(log)
	go hub.Run()
	t.Cleanup(hub.Stop)

	return New(Deps{
		Config:     config.Get(),
		Logger:     log,
		JWT:        jwtService,
		Auth:       api.NewAuthHandler(nil, jwtService, log),
		Characters: api.NewCharacterHandler(nil, t.TempDir(), 2<<20, log),
		Messages:   api.NewMessageHandler(nil, log),
		Chat:       api.NewChatHandler(nil, log),
		Health:     checker,
		SyncHub:    hub,
	})
}

func TestHealthRoute(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	engine := newTestEngine(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/characters"},
		{http.MethodGet, "/api/messages?characterId=1"},
		{http.MethodPost, "/api/chat"},
		{http.MethodGet, "/api/auth/me"},
	} {
		req := httptest.NewRequest(route.method, route.path, nil)
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestMetricsRoute(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	engine := newTestEngine(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
