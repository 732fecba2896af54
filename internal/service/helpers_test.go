package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
	"vibe-next/internal/repository"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
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

type sentMail struct {
	to       string
	token    string
	nickname string
}

type mockSender struct {
	mu           sync.Mutex
	verification []sentMail
	reset        []sentMail
	err          error
}

func (m *mockSender) SendVerificationEmail(_ context.Context, toEmail, token, nickname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.verification = append(m.verification, sentMail{to: toEmail, token: token, nickname: nickname})
	return nil
}

func (m *mockSender) SendPasswordResetEmail(_ context.Context, toEmail, token, nickname string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.reset = append(m.reset, sentMail{to: toEmail, token: token, nickname: nickname})
	return nil
}

func (m *mockSender) lastVerification(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.verification) == 0 {
		t.Fatalf("expected a verification email")
	}
	return m.verification[len(m.verification)-1]
}

func (m *mockSender) lastReset(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.reset) == 0 {
		t.Fatalf("expected a password reset email")
	}
	return m.reset[len(m.reset)-1]
}

type testEnv struct {
	clock    *testClock
	users    *repository.MemoryUserRepository
	comments *repository.MemoryCommentRepository
	sender   *mockSender
	events   *MemorySessionEvents
	tokens   *TokenCodec
	verifier *VerificationService
	sessions *SessionService
	resets   *PasswordResetService
	guard    *Guard
}

func newTestEnv(t *testing.T, requireVerified bool) *testEnv {
	t.Helper()
	clock := newTestClock()
	users := repository.NewMemoryUserRepository()
	sender := &mockSender{}
	events := NewMemorySessionEvents()
	hasher := NewBcryptHasher(4)
	tokens := NewTokenCodec(TokenCodecConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Now:           clock.Now,
	})
	logger := zap.NewNop()
	verifier := NewVerificationService(logger, users, sender, nil, VerificationConfig{Now: clock.Now})
	return &testEnv{
		clock:    clock,
		users:    users,
		comments: repository.NewMemoryCommentRepository(),
		sender:   sender,
		events:   events,
		tokens:   tokens,
		verifier: verifier,
		sessions: NewSessionService(logger, users, hasher, tokens, verifier, events, SessionConfig{
			RequireVerifiedEmail: requireVerified,
			Now:                  clock.Now,
		}),
		resets: NewPasswordResetService(logger, users, hasher, sender, nil, verifier, events, PasswordResetConfig{Now: clock.Now}),
		guard:  NewGuard(tokens, users, verifier),
	}
}

func (e *testEnv) register(t *testing.T, username string) domain.User {
	t.Helper()
	user, err := e.sessions.Register(context.Background(), RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
		Nickname: "nick-" + username,
	})
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return user
}

func (e *testEnv) registerVerified(t *testing.T, username string) domain.User {
	t.Helper()
	e.register(t, username)
	mail := e.sender.lastVerification(t)
	user, err := e.verifier.Verify(context.Background(), mail.token)
	if err != nil {
		t.Fatalf("verify %s: %v", username, err)
	}
	return user
}

func (e *testEnv) login(t *testing.T, username string) SessionTokens {
	t.Helper()
	tokens, err := e.sessions.Login(context.Background(), LoginInput{Username: username, Password: "secret123"})
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return tokens
}

func (e *testEnv) makeAdmin(t *testing.T, username string) domain.User {
	t.Helper()
	now := e.clock.Now()
	admin := domain.User{
		ID:            "admin-" + username,
		Username:      username,
		Email:         username + "@example.com",
		Nickname:      "nick-" + username,
		Role:          domain.RoleAdmin,
		EmailVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	hash, err := NewBcryptHasher(4).Hash("secret123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admin.PasswordHash = hash
	if err := e.users.Create(context.Background(), admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return admin
}

func userExists(t *testing.T, users repository.UserRepository, id string) bool {
	t.Helper()
	_, err := users.GetByID(context.Background(), id)
	if err == nil {
		return true
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("get user %s: %v", id, err)
	}
	return false
}
