package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
	"vibe-next/internal/repository"
	"vibe-next/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockSender struct {
	mu     sync.Mutex
	tokens map[string]string
	resets map[string]string
}

func (m *mockSender) SendVerificationEmail(_ context.Context, toEmail, token, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[toEmail] = token
	return nil
}

func (m *mockSender) SendPasswordResetEmail(_ context.Context, toEmail, token, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[toEmail] = token
	return nil
}

func (m *mockSender) verificationToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[email]
}

func (m *mockSender) resetToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets[email]
}

type apiEnv struct {
	clock    *testClock
	users    *repository.MemoryUserRepository
	comments *repository.MemoryCommentRepository
	sender   *mockSender
	events   *service.MemorySessionEvents
	router   *gin.Engine
}

type envelope struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data"`
	Error        string          `json:"error"`
	TokenExpired bool            `json:"tokenExpired"`
}

func newAPIEnv(t *testing.T, requireVerified bool, cronSecret string) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	users := repository.NewMemoryUserRepository()
	comments := repository.NewMemoryCommentRepository()
	sender := &mockSender{tokens: map[string]string{}, resets: map[string]string{}}
	events := service.NewMemorySessionEvents()
	hasher := service.NewBcryptHasher(4)
	tokens := service.NewTokenCodec(service.TokenCodecConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Now:           clock.Now,
	})
	verifier := service.NewVerificationService(logger, users, sender, nil, service.VerificationConfig{Now: clock.Now})
	sessions := service.NewSessionService(logger, users, hasher, tokens, verifier, events, service.SessionConfig{
		RequireVerifiedEmail: requireVerified,
		Now:                  clock.Now,
	})
	resets := service.NewPasswordResetService(logger, users, hasher, sender, nil, verifier, events, service.PasswordResetConfig{Now: clock.Now})
	guard := service.NewGuard(tokens, users, verifier)

	router := NewRouter(logger, RouterConfig{
		Guard:          guard,
		Auth:           NewAuthHandler(logger, sessions, guard, events, false),
		Verification:   NewVerificationHandler(logger, verifier),
		Password:       NewPasswordHandler(logger, resets),
		Comments:       NewCommentHandler(logger, service.NewCommentService(logger, comments, clock.Now)),
		Admin:          NewAdminHandler(logger, verifier, cronSecret),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	return &apiEnv{clock: clock, users: users, comments: comments, sender: sender, events: events, router: router}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, bearer string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	env := decode(t, rec)
	if !env.Success {
		t.Fatalf("expected success, got %d %q", rec.Code, env.Error)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *apiEnv) register(t *testing.T, username string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "secret123",
		"nickname": "nick-" + username,
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d %s", username, rec.Code, rec.Body.String())
	}
	var data struct {
		User domain.User `json:"user"`
	}
	decodeData(t, rec, &data)
	return data.User.ID
}

func (e *apiEnv) verify(t *testing.T, username string) {
	t.Helper()
	token := e.sender.verificationToken(username + "@example.com")
	rec := e.do(t, http.MethodGet, "/auth/verify-email?token="+token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify %s: expected 200, got %d %s", username, rec.Code, rec.Body.String())
	}
}

type loginResult struct {
	AccessToken string      `json:"accessToken"`
	ExpiresIn   int64       `json:"expiresIn"`
	User        domain.User `json:"user"`
	cookie      *http.Cookie
}

func (e *apiEnv) login(t *testing.T, username string) loginResult {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", map[string]string{"username": username, "password": "secret123"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d %s", username, rec.Code, rec.Body.String())
	}
	var out loginResult
	decodeData(t, rec, &out)
	out.cookie = findCookie(rec, refreshCookieName)
	if out.cookie == nil {
		t.Fatalf("login %s: missing refresh cookie", username)
	}
	return out
}

func (e *apiEnv) createAdmin(t *testing.T, username string) {
	t.Helper()
	hash, err := service.NewBcryptHasher(4).Hash("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := e.clock.Now()
	err = e.users.Create(context.Background(), domain.User{
		ID:            "admin-" + username,
		Username:      username,
		Email:         username + "@example.com",
		Nickname:      "nick-" + username,
		Role:          domain.RoleAdmin,
		PasswordHash:  hash,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
}
