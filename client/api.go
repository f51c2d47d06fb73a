// Package client implements a headless chat client: a REST API client
// with retry, an in-memory conversation store with cursor pagination,
// a send controller with optimistic updates, scroll position
// coordination, draft persistence and a cross-tab broadcast bus.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"ai-persona-chat/pkg/logger"
)

// Retry policy for API failures: two retries with doubling backoff
// after the initial attempt. Every failure retries identically, there
// is no distinction between network errors and application errors.
const (
	maxRetries     = 2
	retryBaseDelay = 400 * time.Millisecond
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// User mirrors the server's user shape
type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

// Character mirrors the server's character shape
type Character struct {
	ID           uint    `json:"id"`
	Name         string  `json:"name"`
	Prompt       string  `json:"prompt"`
	ThumbnailURL *string `json:"thumbnail_url"`
	Owned        bool    `json:"owned"`
}

// ServerMessage is one persisted history row
type ServerMessage struct {
	ID        uint   `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// ChatResult is the reply to a successful send
type ChatResult struct {
	Reply     string `json:"reply"`
	CreatedAt int64  `json:"createdAt"`
}

// API talks to the chat server. The cookie jar carries the session.
type API struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewAPI creates an API client for the given server base URL
func NewAPI(baseURL string, log *logger.Logger) (*API, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &API{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
		},
		log: log,
	}, nil
}

func (a *API) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(raw),
		}
	}

	if out != nil && len(raw) > 0 {
		return json.Unmarshal(raw, out)
	}
	return nil
}

// doWithRetry runs the request up to 1+maxRetries times with doubling
// backoff. The context cancels waiting between attempts.
func (a *API) doWithRetry(ctx context.Context, method, path string, body any, out any) error {
	delay := retryBaseDelay

	var err error
	for attempt := 0; ; attempt++ {
		err = a.do(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		a.log.Debug("Retrying request",
			"path", path,
			"attempt", attempt+1,
			"delay", delay.String(),
			"error", err.Error(),
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
}

func extractErrorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return string(raw)
}

// Register creates an account and starts a session
func (a *API) Register(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := a.do(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"email": email, "password": password}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login starts a session
func (a *API) Login(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := a.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout ends the session
func (a *API) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me returns the current user, refreshing the session cookie
func (a *API) Me(ctx context.Context) (*User, error) {
	var user User
	if err := a.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListCharacters returns the visible personas
func (a *API) ListCharacters(ctx context.Context) ([]Character, error) {
	var characters []Character
	if err := a.do(ctx, http.MethodGet, "/api/characters", nil, &characters); err != nil {
		return nil, err
	}
	return characters, nil
}

// CreateCharacter creates a persona from a name, prompt and optional
// thumbnail image
func (a *API) CreateCharacter(ctx context.Context, name, prompt string, thumbnail []byte, thumbnailName string) (*Character, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("name", name); err != nil {
		return nil, err
	}
	if err := writer.WriteField("prompt", prompt); err != nil {
		return nil, err
	}
	if thumbnail != nil {
		part, err := writer.CreateFormFile("thumbnail", thumbnailName)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(thumbnail); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/characters", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: extractErrorMessage(raw)}
	}

	var character Character
	if err := json.Unmarshal(raw, &character); err != nil {
		return nil, err
	}
	return &character, nil
}

// DeleteCharacter removes an owned persona
func (a *API) DeleteCharacter(ctx context.Context, id uint) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/api/characters/%d", id), nil, nil)
}

// Messages fetches one history page. before is an exclusive epoch-ms
// cursor; zero fetches the newest page. The result is ascending.
func (a *API) Messages(ctx context.Context, characterID uint, limit int, before int64) ([]ServerMessage, error) {
	query := url.Values{}
	query.Set("characterId", strconv.FormatUint(uint64(characterID), 10))
	query.Set("limit", strconv.Itoa(limit))
	if before > 0 {
		query.Set("before", strconv.FormatInt(before, 10))
	}

	var messages []ServerMessage
	err := a.doWithRetry(ctx, http.MethodGet, "/api/messages?"+query.Encode(), nil, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Chat sends one message and returns the persona's reply. Failures
// are retried up to the cap regardless of kind.
func (a *API) Chat(ctx context.Context, characterID *uint, message string) (*ChatResult, error) {
	body := map[string]any{"message": message}
	if characterID != nil {
		body["characterId"] = *characterID
	}

	var result ChatResult
	if err := a.doWithRetry(ctx, http.MethodPost, "/api/chat", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
