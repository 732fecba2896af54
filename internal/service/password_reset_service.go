package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
	"vibe-next/internal/email"
	"vibe-next/internal/repository"
)

const defaultPasswordResetTTL = time.Hour

// PasswordResetService implementa olvido y restablecimiento de contrasena.
type PasswordResetService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	hasher   PasswordHasher
	sender   email.Sender
	limiter  EmailRateLimiter
	verifier *VerificationService
	events   SessionEvents
	ttl      time.Duration
	now      func() time.Time
}

type PasswordResetConfig struct {
	TTL time.Duration
	Now func() time.Time
}

func NewPasswordResetService(
	logger *zap.Logger,
	users repository.UserRepository,
	hasher PasswordHasher,
	sender email.Sender,
	limiter EmailRateLimiter,
	verifier *VerificationService,
	events SessionEvents,
	cfg PasswordResetConfig,
) *PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(10)
	}
	if sender == nil {
		sender = email.NewDisabledSender("")
	}
	if limiter == nil {
		limiter = allowAll{}
	}
	if events == nil {
		events = noopSessionEvents{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultPasswordResetTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &PasswordResetService{
		logger:   logger,
		users:    users,
		hasher:   hasher,
		sender:   sender,
		limiter:  limiter,
		verifier: verifier,
		events:   events,
		ttl:      cfg.TTL,
		now:      cfg.Now,
	}
}

// Request no revela si el email existe.
func (s *PasswordResetService) Request(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidInput
	}
	if !s.limiter.Allow("reset:" + emailAddr) {
		return ErrRateLimited
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Debug("password reset for unknown email")
			return nil
		}
		return err
	}
	if s.verifier != nil {
		reaped, err := s.verifier.ReapIfExpired(ctx, user)
		if err != nil {
			return err
		}
		if reaped {
			return nil
		}
	}

	now := s.now().UTC()
	token, err := generateSecureToken()
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordReset(ctx, user.ID, token, now.Add(s.ttl), now); err != nil {
		return fmt.Errorf("set password reset: %w", err)
	}
	if err := s.sender.SendPasswordResetEmail(ctx, user.Email, token, user.Nickname); err != nil {
		s.logger.Warn("send password reset email failed", zap.Error(err), zap.String("user_id", user.ID))
		return ErrEmailSendFailure
	}
	return nil
}

func (s *PasswordResetService) Check(ctx context.Context, token string) error {
	_, err := s.lookup(ctx, token)
	return err
}

func (s *PasswordResetService) Reset(ctx context.Context, token, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	user, err := s.lookup(ctx, token)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	if err := s.users.ResetPassword(ctx, user.ID, hash, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTokenInvalid
		}
		return fmt.Errorf("reset password: %w", err)
	}
	s.events.Publish(ctx, domain.SessionEvent{UserID: user.ID, Kind: domain.SessionRevoked, At: now})
	s.logger.Info("password reset", zap.String("user_id", user.ID))
	return nil
}

func (s *PasswordResetService) lookup(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrTokenInvalid
	}
	user, err := s.users.GetByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrTokenInvalid
		}
		return domain.User{}, err
	}
	if user.PasswordResetExpires == nil || user.PasswordResetExpires.Before(s.now().UTC()) {
		return domain.User{}, ErrTokenInvalid
	}
	return user, nil
}
