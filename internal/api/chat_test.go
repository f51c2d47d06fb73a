package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-persona-chat/ai"
	"ai-persona-chat/internal/service"
	"ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/jwt"
	"ai-persona-chat/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	reply   *service.ChatReply
	err     error
	gotUser uint
	gotChar *uint
	gotMsg  string
}

func (f *fakeSender) Send(ctx context.Context, userID uint, characterID *uint, message, model string) (*service.ChatReply, error) {
	f.gotUser = userID
	f.gotChar = characterID
	f.gotMsg = message
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func newChatRouter(t *testing.T, sender Sender) (*gin.Engine, *http.Cookie) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtService := jwt.NewService("test-secret", time.Hour)
	token, err := jwtService.GenerateToken(9, "chat@example.com")
	require.NoError(t, err)

	engine := gin.New()
	engine.Use(errors.ErrorHandler())

	group := engine.Group("/api/chat")
	group.Use(middleware.JWTAuthMiddleware(jwtService, testLogger()))
	NewChatHandler(sender, testLogger()).RegisterRoutes(group)

	return engine, &http.Cookie{Name: middleware.AuthCookieName, Value: token}
}

func postChat(engine *gin.Engine, cookie *http.Cookie, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestChatSendSuccess(t *testing.T) {
	sender := &fakeSender{reply: &service.ChatReply{Reply: "Hello!", CreatedAt: 1700000000000}}
	engine, cookie := newChatRouter(t, sender)

	rec := postChat(engine, cookie, `{"message":"hi","characterId":3}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"reply":"Hello!"`)
	assert.Contains(t, rec.Body.String(), `"createdAt":1700000000000`)
	assert.Equal(t, uint(9), sender.gotUser)
	require.NotNil(t, sender.gotChar)
	assert.Equal(t, uint(3), *sender.gotChar)
	assert.Equal(t, "hi", sender.gotMsg)
}

func TestChatSendWithoutCharacter(t *testing.T) {
	sender := &fakeSender{reply: &service.ChatReply{Reply: "ok"}}
	engine, cookie := newChatRouter(t, sender)

	rec := postChat(engine, cookie, `{"message":"hi"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, sender.gotChar)
}

func TestChatSendRequiresAuth(t *testing.T) {
	engine, _ := newChatRouter(t, &fakeSender{})

	rec := postChat(engine, nil, `{"message":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChatSendMessageTooLong(t *testing.T) {
	sender := &fakeSender{err: service.ErrMessageTooLong}
	engine, cookie := newChatRouter(t, sender)

	rec := postChat(engine, cookie, `{"message":"`+strings.Repeat("a", 201)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSendUnknownCharacter(t *testing.T) {
	sender := &fakeSender{err: service.ErrCharacterNotFound}
	engine, cookie := newChatRouter(t, sender)

	rec := postChat(engine, cookie, `{"message":"hi","characterId":999}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSendUpstreamFailure(t *testing.T) {
	sender := &fakeSender{err: &ai.UpstreamError{StatusCode: 529, Body: "overloaded"}}
	engine, cookie := newChatRouter(t, sender)

	rec := postChat(engine, cookie, `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "overloaded")
}

func TestChatSendMissingBody(t *testing.T) {
	engine, cookie := newChatRouter(t, &fakeSender{})

	rec := postChat(engine, cookie, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
