package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
	"vibe-next/internal/repository"
)

const (
	defaultMaxSessionDuration = 30 * 24 * time.Hour
	minPasswordLength         = 6
	minUsernameLength         = 3
	maxUsernameLength         = 32
)

// SessionService coordina login, registro, rotacion de refresh tokens y logout.
type SessionService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	hasher   PasswordHasher
	tokens   *TokenCodec
	verifier *VerificationService
	events   SessionEvents

	maxSession      time.Duration
	requireVerified bool
	now             func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type SessionConfig struct {
	MaxSessionDuration   time.Duration
	RequireVerifiedEmail bool
	Now                  func() time.Time
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Nickname string
}

// SessionTokens es el resultado de login y refresh; RefreshToken solo viaja en la cookie.
type SessionTokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         domain.User
}

func NewSessionService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens *TokenCodec,
	verifier *VerificationService,
	events SessionEvents,
	cfg SessionConfig,
) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(10)
	}
	if events == nil {
		events = noopSessionEvents{}
	}
	if cfg.MaxSessionDuration <= 0 {
		cfg.MaxSessionDuration = defaultMaxSessionDuration
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionService{
		logger:          logger,
		users:           users,
		hasher:          hasher,
		tokens:          tokens,
		verifier:        verifier,
		events:          events,
		maxSession:      cfg.MaxSessionDuration,
		requireVerified: cfg.RequireVerifiedEmail,
		now:             cfg.Now,
	}
}

func (s *SessionService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	username := strings.TrimSpace(input.Username)
	emailAddr := normalizeEmail(input.Email)
	nickname := strings.TrimSpace(input.Nickname)
	password := input.Password

	if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
		return domain.User{}, fmt.Errorf("%w: username must be 3-32 characters", ErrInvalidInput)
	}
	if !isValidEmail(emailAddr) {
		return domain.User{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return domain.User{}, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	if nickname == "" {
		return domain.User{}, fmt.Errorf("%w: nickname is required", ErrInvalidInput)
	}

	existing, err := s.users.FindByIdentity(ctx, username, emailAddr, nickname)
	switch {
	case err == nil:
		reaped, reapErr := s.reap(ctx, existing)
		if reapErr != nil {
			return domain.User{}, reapErr
		}
		if !reaped {
			return domain.User{}, ErrConflict
		}
		if _, err := s.users.FindByIdentity(ctx, username, emailAddr, nickname); err == nil {
			return domain.User{}, ErrConflict
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, err
		}
	case !errors.Is(err, pgx.ErrNoRows):
		return domain.User{}, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := domain.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         emailAddr,
		Nickname:      nickname,
		Role:          domain.RoleUser,
		PasswordHash:  passwordHash,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	var token string
	if s.verifier != nil {
		var expiresAt time.Time
		token, expiresAt, err = s.verifier.newToken(now)
		if err != nil {
			return domain.User{}, err
		}
		user.EmailVerificationToken = &token
		user.EmailVerificationExpires = &expiresAt
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrConflict
		}
		return domain.User{}, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("email", user.Email))

	if s.verifier != nil {
		s.verifier.deliver(ctx, user, token)
	}
	return user, nil
}

func (s *SessionService) Login(ctx context.Context, input LoginInput) (SessionTokens, error) {
	username := strings.TrimSpace(input.Username)
	emailAddr := normalizeEmail(input.Email)
	if (username == "") == (emailAddr == "") || input.Password == "" {
		return SessionTokens{}, ErrInvalidInput
	}

	var (
		user domain.User
		err  error
	)
	if username != "" {
		user, err = s.users.GetByUsername(ctx, username)
	} else {
		user, err = s.users.GetByEmail(ctx, emailAddr)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.hasher.Compare(input.Password, s.fallbackHash())
			return SessionTokens{}, ErrInvalidCredentials
		}
		return SessionTokens{}, err
	}

	reaped, err := s.reap(ctx, user)
	if err != nil {
		return SessionTokens{}, err
	}
	if reaped {
		s.hasher.Compare(input.Password, s.fallbackHash())
		return SessionTokens{}, ErrInvalidCredentials
	}
	if !s.hasher.Compare(input.Password, user.PasswordHash) {
		return SessionTokens{}, ErrInvalidCredentials
	}
	if s.requireVerified && !user.EmailVerified {
		return SessionTokens{}, ErrEmailNotVerified
	}

	tokens, err := s.issue(user)
	if err != nil {
		return SessionTokens{}, err
	}
	now := s.now().UTC()
	if err := s.users.StartSession(ctx, user.ID, tokens.RefreshToken, now); err != nil {
		return SessionTokens{}, fmt.Errorf("start session: %w", err)
	}
	user.RefreshToken = &tokens.RefreshToken
	user.SessionStartedAt = &now
	user.LastActivityAt = &now
	tokens.User = user

	s.publish(ctx, user.ID, domain.SessionLoggedIn, now)
	s.logger.Info("user logged in", zap.String("user_id", user.ID))
	return tokens, nil
}

func (s *SessionService) Refresh(ctx context.Context, presented string) (SessionTokens, error) {
	presented = strings.TrimSpace(presented)
	if presented == "" {
		return SessionTokens{}, ErrUnauthenticated
	}
	claims, err := s.tokens.VerifyRefresh(presented)
	if err != nil {
		if errors.Is(err, ErrConfig) {
			return SessionTokens{}, err
		}
		return SessionTokens{}, ErrUnauthenticated
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SessionTokens{}, ErrUnauthenticated
		}
		return SessionTokens{}, err
	}
	if user.RefreshToken == nil || subtle.ConstantTimeCompare([]byte(*user.RefreshToken), []byte(presented)) != 1 {
		s.logger.Warn("refresh token mismatch", zap.String("user_id", user.ID))
		return SessionTokens{}, ErrUnauthenticated
	}
	reaped, err := s.reap(ctx, user)
	if err != nil {
		return SessionTokens{}, err
	}
	if reaped {
		return SessionTokens{}, ErrUnauthenticated
	}

	now := s.now().UTC()
	if user.SessionStartedAt == nil || now.Sub(*user.SessionStartedAt) > s.maxSession {
		s.publish(ctx, user.ID, domain.SessionExpired, now)
		return SessionTokens{}, ErrSessionExpired
	}

	tokens, err := s.issue(user)
	if err != nil {
		return SessionTokens{}, err
	}
	rotated, err := s.users.RotateRefreshToken(ctx, user.ID, presented, tokens.RefreshToken, now)
	if err != nil {
		return SessionTokens{}, fmt.Errorf("rotate refresh token: %w", err)
	}
	if !rotated {
		s.logger.Warn("refresh token rotated concurrently", zap.String("user_id", user.ID))
		return SessionTokens{}, ErrUnauthenticated
	}
	user.RefreshToken = &tokens.RefreshToken
	user.LastActivityAt = &now
	tokens.User = user

	s.publish(ctx, user.ID, domain.SessionRefreshed, now)
	return tokens, nil
}

// Logout es idempotente: usuario inexistente o token ya borrado no es error.
func (s *SessionService) Logout(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	now := s.now().UTC()
	if err := s.users.ClearRefreshToken(ctx, userID, now); err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	s.publish(ctx, userID, domain.SessionLoggedOut, now)
	return nil
}

// LogoutUserID resuelve el usuario del logout a partir del refresh token cuando el bearer no sirve.
func (s *SessionService) LogoutUserID(refreshToken string) string {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return ""
	}
	return claims.UserID
}

func (s *SessionService) issue(user domain.User) (SessionTokens, error) {
	if s.tokens == nil {
		return SessionTokens{}, ErrJWTNotConfigured
	}
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return SessionTokens{}, err
	}
	refresh, err := s.tokens.IssueRefresh(user.ID)
	if err != nil {
		return SessionTokens{}, err
	}
	return SessionTokens{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

func (s *SessionService) reap(ctx context.Context, user domain.User) (bool, error) {
	if s.verifier == nil {
		return false, nil
	}
	return s.verifier.ReapIfExpired(ctx, user)
}

func (s *SessionService) publish(ctx context.Context, userID string, kind domain.SessionEventKind, at time.Time) {
	s.events.Publish(ctx, domain.SessionEvent{UserID: userID, Kind: kind, At: at})
}

// fallbackHash iguala el costo de un login con identificador desconocido.
func (s *SessionService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash(uuid.NewString())
		if err != nil {
			s.logger.Warn("dummy hash failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func isValidEmail(addr string) bool {
	if addr == "" || strings.ContainsAny(addr, " <>") {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return false
	}
	at := strings.LastIndex(addr, "@")
	return at > 0 && strings.Contains(addr[at+1:], ".")
}
