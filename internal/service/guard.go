package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"vibe-next/internal/domain"
	"vibe-next/internal/repository"
)

// Guard resuelve la identidad del llamador y decide permisos.
type Guard struct {
	tokens   *TokenCodec
	users    repository.UserRepository
	verifier *VerificationService
}

func NewGuard(tokens *TokenCodec, users repository.UserRepository, verifier *VerificationService) *Guard {
	return &Guard{tokens: tokens, users: users, verifier: verifier}
}

// IdentifyCaller nunca falla: cualquier problema equivale a anonimo.
func (g *Guard) IdentifyCaller(authorization string) (string, bool) {
	token, ok := bearerToken(authorization)
	if !ok || g.tokens == nil {
		return "", false
	}
	claims, err := g.tokens.VerifyAccess(token)
	if err != nil {
		return "", false
	}
	return claims.UserID, true
}

func (g *Guard) RequireAuthenticated(ctx context.Context, authorization string) (domain.User, error) {
	if g.tokens == nil || !g.tokens.Configured() {
		return domain.User{}, ErrJWTNotConfigured
	}
	userID, ok := g.IdentifyCaller(authorization)
	if !ok {
		return domain.User{}, ErrUnauthenticated
	}
	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUnauthenticated
		}
		return domain.User{}, err
	}
	if g.verifier != nil {
		reaped, err := g.verifier.ReapIfExpired(ctx, user)
		if err != nil {
			return domain.User{}, err
		}
		if reaped {
			return domain.User{}, ErrUnauthenticated
		}
	}
	return user, nil
}

func (g *Guard) RequireOwner(ctx context.Context, authorization, ownerID string) (domain.User, error) {
	user, err := g.RequireAuthenticated(ctx, authorization)
	if err != nil {
		return domain.User{}, err
	}
	if !CanMutate(user, ownerID) {
		return domain.User{}, ErrForbidden
	}
	return user, nil
}

func (g *Guard) RequireAdmin(ctx context.Context, authorization string) (domain.User, error) {
	user, err := g.RequireAuthenticated(ctx, authorization)
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsAdmin() {
		return domain.User{}, ErrForbidden
	}
	return user, nil
}

// CanMutate es la unica regla de propiedad: dueno o admin.
func CanMutate(user domain.User, ownerID string) bool {
	if user.ID == "" {
		return false
	}
	return user.ID == ownerID || user.IsAdmin()
}

func bearerToken(authorization string) (string, bool) {
	parts := strings.Fields(authorization)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
