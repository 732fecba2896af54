package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vibe-next/internal/domain"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenCodec emite y valida access y refresh tokens con secretos independientes.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	now           func() time.Time
}

type TokenCodecConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Now           func() time.Time
}

type AccessClaims struct {
	UserID    string      `json:"uid"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	TokenType string      `json:"typ"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID    string `json:"uid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid       = errors.New("jwt invalid")
	ErrJWTExpired       = errors.New("jwt expired")
	ErrJWTNotConfigured = fmt.Errorf("%w: jwt secret not configured", ErrConfig)
)

func NewTokenCodec(cfg TokenCodecConfig) *TokenCodec {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "vibe-next"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &TokenCodec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		now:           cfg.Now,
	}
}

func (s *TokenCodec) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenCodec) RefreshTTL() time.Duration {
	return s.refreshTTL
}

func (s *TokenCodec) Configured() bool {
	return len(s.accessSecret) > 0 && len(s.refreshSecret) > 0
}

func (s *TokenCodec) IssueAccess(user domain.User) (string, error) {
	if len(s.accessSecret) == 0 {
		return "", ErrJWTNotConfigured
	}
	now := s.now().UTC()
	claims := AccessClaims{
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
}

// IssueRefresh firma un refresh token; el jti hace unico cada token emitido.
func (s *TokenCodec) IssueRefresh(userID string) (string, error) {
	if len(s.refreshSecret) == 0 {
		return "", ErrJWTNotConfigured
	}
	now := s.now().UTC()
	claims := RefreshClaims{
		UserID:    userID,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
}

func (s *TokenCodec) VerifyAccess(accessToken string) (AccessClaims, error) {
	if len(s.accessSecret) == 0 {
		return AccessClaims{}, ErrJWTNotConfigured
	}
	if strings.TrimSpace(accessToken) == "" {
		return AccessClaims{}, ErrJWTInvalid
	}
	var claims AccessClaims
	if err := s.parseToken(accessToken, &claims, s.accessSecret); err != nil {
		return AccessClaims{}, err
	}
	if claims.TokenType != tokenTypeAccess || !s.isValidClaims(claims.UserID, claims.RegisteredClaims) {
		return AccessClaims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *TokenCodec) VerifyRefresh(refreshToken string) (RefreshClaims, error) {
	if len(s.refreshSecret) == 0 {
		return RefreshClaims{}, ErrJWTNotConfigured
	}
	if strings.TrimSpace(refreshToken) == "" {
		return RefreshClaims{}, ErrJWTInvalid
	}
	var claims RefreshClaims
	if err := s.parseToken(refreshToken, &claims, s.refreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	if claims.TokenType != tokenTypeRefresh || claims.ID == "" || !s.isValidClaims(claims.UserID, claims.RegisteredClaims) {
		return RefreshClaims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *TokenCodec) parseToken(tokenString string, claims jwt.Claims, secret []byte) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrJWTExpired
		}
		return ErrJWTInvalid
	}
	return nil
}

func (s *TokenCodec) isValidClaims(userID string, registered jwt.RegisteredClaims) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}
	if registered.Subject != userID {
		return false
	}
	return strings.TrimSpace(registered.Issuer) == s.issuer
}
