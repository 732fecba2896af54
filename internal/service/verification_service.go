package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
	"vibe-next/internal/email"
	"vibe-next/internal/repository"
)

const (
	defaultVerificationTTL = 24 * time.Hour
	secureTokenBytes       = 32
)

// VerificationService gestiona el ciclo de vida de la verificacion de email.
type VerificationService struct {
	logger  *zap.Logger
	users   repository.UserRepository
	sender  email.Sender
	limiter EmailRateLimiter
	ttl     time.Duration
	now     func() time.Time
}

type VerificationConfig struct {
	TTL time.Duration
	Now func() time.Time
}

type VerificationStats struct {
	ExpiredUnverifiedCount int64 `json:"expiredUnverifiedCount"`
	TotalUnverifiedCount   int64 `json:"totalUnverifiedCount"`
}

func NewVerificationService(logger *zap.Logger, users repository.UserRepository, sender email.Sender, limiter EmailRateLimiter, cfg VerificationConfig) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = email.NewDisabledSender("")
	}
	if limiter == nil {
		limiter = allowAll{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultVerificationTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &VerificationService{
		logger:  logger,
		users:   users,
		sender:  sender,
		limiter: limiter,
		ttl:     cfg.TTL,
		now:     cfg.Now,
	}
}

// ExpiredUnverified es el predicado unico del barrido y de las estadisticas.
func ExpiredUnverified(now time.Time) domain.UserFilter {
	verified := false
	return domain.UserFilter{Verified: &verified, VerificationExpiresBefore: &now}
}

// newToken devuelve un token de verificacion y su expiracion.
func (s *VerificationService) newToken(from time.Time) (string, time.Time, error) {
	token, err := generateSecureToken()
	if err != nil {
		return "", time.Time{}, err
	}
	return token, from.Add(s.ttl), nil
}

// CreateVerification sobrescribe el token pendiente del usuario.
func (s *VerificationService) CreateVerification(ctx context.Context, user domain.User) (string, error) {
	now := s.now().UTC()
	token, expiresAt, err := s.newToken(now)
	if err != nil {
		return "", err
	}
	if err := s.users.SetEmailVerification(ctx, user.ID, token, expiresAt, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrAlreadyVerified
		}
		return "", fmt.Errorf("set verification: %w", err)
	}
	return token, nil
}

func (s *VerificationService) deliver(ctx context.Context, user domain.User, token string) {
	if err := s.sender.SendVerificationEmail(ctx, user.Email, token, user.Nickname); err != nil {
		s.logger.Warn("send verification email failed", zap.Error(err), zap.String("user_id", user.ID), zap.String("email", user.Email))
	}
}

func (s *VerificationService) Verify(ctx context.Context, token string) (domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrInvalidInput
	}
	user, err := s.users.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrTokenInvalid
		}
		return domain.User{}, err
	}
	now := s.now().UTC()
	if user.VerificationExpired(now) {
		if err := s.users.Delete(ctx, user.ID); err != nil {
			return domain.User{}, err
		}
		s.logger.Info("expired unverified user removed on verify", zap.String("user_id", user.ID))
		return domain.User{}, ErrTokenExpired
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrTokenInvalid
		}
		return domain.User{}, err
	}
	user.EmailVerified = true
	user.EmailVerificationToken = nil
	user.EmailVerificationExpires = nil
	user.UpdatedAt = now
	return user, nil
}

func (s *VerificationService) Resend(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidInput
	}
	if !s.limiter.Allow("verify:" + emailAddr) {
		return ErrRateLimited
	}
	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	reaped, err := s.ReapIfExpired(ctx, user)
	if err != nil {
		return err
	}
	if reaped {
		return ErrTokenExpired
	}
	token, err := s.CreateVerification(ctx, user)
	if err != nil {
		return err
	}
	s.deliver(ctx, user, token)
	return nil
}

// ReapIfExpired borra al usuario si su ventana de verificacion ya vencio.
func (s *VerificationService) ReapIfExpired(ctx context.Context, user domain.User) (bool, error) {
	if !user.VerificationExpired(s.now().UTC()) {
		return false, nil
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		return false, fmt.Errorf("delete expired user: %w", err)
	}
	s.logger.Info("expired unverified user removed", zap.String("user_id", user.ID))
	return true, nil
}

func (s *VerificationService) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := s.users.DeleteWhere(ctx, ExpiredUnverified(s.now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("sweep expired users: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("expired unverified users swept", zap.Int64("deleted", deleted))
	}
	return deleted, nil
}

func (s *VerificationService) Stats(ctx context.Context) (VerificationStats, error) {
	expired, err := s.users.CountWhere(ctx, ExpiredUnverified(s.now().UTC()))
	if err != nil {
		return VerificationStats{}, err
	}
	verified := false
	total, err := s.users.CountWhere(ctx, domain.UserFilter{Verified: &verified})
	if err != nil {
		return VerificationStats{}, err
	}
	return VerificationStats{ExpiredUnverifiedCount: expired, TotalUnverifiedCount: total}, nil
}

func generateSecureToken() (string, error) {
	buf := make([]byte, secureTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func normalizeEmail(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}
