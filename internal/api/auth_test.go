package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-persona-chat/internal/models"
	"ai-persona-chat/internal/service"
	"ai-persona-chat/pkg/errors"
	"ai-persona-chat/pkg/jwt"
	"ai-persona-chat/pkg/logger"
	"ai-persona-chat/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	registerErr error
	authErr     error
	user        *models.User
}

func (f *fakeUserStore) Register(ctx context.Context, email, password string) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.user, nil
}

func (f *fakeUserStore) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.user, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if f.user == nil {
		return nil, service.ErrUserNotFound
	}
	return f.user, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func newAuthRouter(users UserStore, jwtService *jwt.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(errors.ErrorHandler())

	handler := NewAuthHandler(users, jwtService, testLogger())
	auth := middleware.JWTAuthMiddleware(jwtService, testLogger())
	handler.RegisterRoutes(engine.Group("/api/auth"), auth)
	return engine
}

func authCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == middleware.AuthCookieName {
			return cookie
		}
	}
	return nil
}

func TestRegisterSetsSessionCookie(t *testing.T) {
	store := &fakeUserStore{user: &models.User{ID: 1, Email: "new@example.com"}}
	engine := newAuthRouter(store, jwt.NewService("test-secret", time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"new@example.com","password":"longenough"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"new@example.com"`)

	cookie := authCookie(t, rec.Result())
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := &fakeUserStore{registerErr: service.ErrUserAlreadyExists}
	engine := newAuthRouter(store, jwt.NewService("test-secret", time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"dup@example.com","password":"longenough"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	store := &fakeUserStore{user: &models.User{ID: 1, Email: "a@b.c"}}
	engine := newAuthRouter(store, jwt.NewService("test-secret", time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"a@b.c","password":"short"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	store := &fakeUserStore{authErr: service.ErrInvalidCredentials}
	engine := newAuthRouter(store, jwt.NewService("test-secret", time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"a@b.c","password":"wrongpass"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutClearsCookie(t *testing.T) {
	engine := newAuthRouter(&fakeUserStore{}, jwt.NewService("test-secret", time.Hour))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true}`, rec.Body.String())
	cookie := authCookie(t, rec.Result())
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestMeRefreshesCookie(t *testing.T) {
	jwtService := jwt.NewService("test-secret", time.Hour)
	store := &fakeUserStore{user: &models.User{ID: 42, Email: "me@example.com"}}
	engine := newAuthRouter(store, jwtService)

	token, err := jwtService.GenerateToken(42, "me@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.AuthCookieName, Value: token})
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":42`)

	cookie := authCookie(t, rec.Result())
	require.NotNil(t, cookie)
	assert.NotEmpty(t, cookie.Value)
}

func TestMeWithoutSession(t *testing.T) {
	engine := newAuthRouter(&fakeUserStore{}, jwt.NewService("test-secret", time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
