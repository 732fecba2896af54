package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"vibe-next/internal/domain"
)

// MemoryUserRepository guarda usuarios en memoria; aplica las mismas reglas que PgUserRepository.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]domain.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == user.ID || u.Username == user.Username || u.Email == user.Email || u.Nickname == user.Nickname {
			return ErrDuplicate
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.ID == id })
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) FindByIdentity(_ context.Context, username, email, nickname string) (domain.User, error) {
	return r.find(func(u domain.User) bool {
		return u.Username == username || u.Email == email || u.Nickname == nickname
	})
}

func (r *MemoryUserRepository) GetByVerificationToken(_ context.Context, token string) (domain.User, error) {
	return r.find(func(u domain.User) bool {
		return u.EmailVerificationToken != nil && *u.EmailVerificationToken == token
	})
}

func (r *MemoryUserRepository) GetByResetToken(_ context.Context, token string) (domain.User, error) {
	return r.find(func(u domain.User) bool {
		return u.PasswordResetToken != nil && *u.PasswordResetToken == token
	})
}

func (r *MemoryUserRepository) StartSession(_ context.Context, id, refreshToken string, at time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		u.RefreshToken = ptr(refreshToken)
		u.SessionStartedAt = ptr(at)
		u.LastActivityAt = ptr(at)
		u.UpdatedAt = at
		return true
	})
}

func (r *MemoryUserRepository) RotateRefreshToken(_ context.Context, id, presented, next string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.RefreshToken == nil || *u.RefreshToken != presented {
		return false, nil
	}
	u.RefreshToken = ptr(next)
	u.LastActivityAt = ptr(at)
	u.UpdatedAt = at
	r.users[id] = u
	return true, nil
}

func (r *MemoryUserRepository) ClearRefreshToken(_ context.Context, id string, at time.Time) error {
	err := r.update(id, func(u *domain.User) bool {
		u.RefreshToken = nil
		u.LastActivityAt = ptr(at)
		u.UpdatedAt = at
		return true
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (r *MemoryUserRepository) SetEmailVerification(_ context.Context, id, token string, expiresAt, at time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		if u.EmailVerified {
			return false
		}
		u.EmailVerificationToken = ptr(token)
		u.EmailVerificationExpires = ptr(expiresAt)
		u.UpdatedAt = at
		return true
	})
}

func (r *MemoryUserRepository) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		u.EmailVerified = true
		u.EmailVerificationToken = nil
		u.EmailVerificationExpires = nil
		u.UpdatedAt = at
		return true
	})
}

func (r *MemoryUserRepository) SetPasswordReset(_ context.Context, id, token string, expiresAt, at time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		u.PasswordResetToken = ptr(token)
		u.PasswordResetExpires = ptr(expiresAt)
		u.UpdatedAt = at
		return true
	})
}

func (r *MemoryUserRepository) ResetPassword(_ context.Context, id, passwordHash string, at time.Time) error {
	return r.update(id, func(u *domain.User) bool {
		u.PasswordHash = passwordHash
		u.PasswordResetToken = nil
		u.PasswordResetExpires = nil
		u.RefreshToken = nil
		u.UpdatedAt = at
		return true
	})
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) CountWhere(_ context.Context, filter domain.UserFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if filter.Matches(u) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryUserRepository) DeleteWhere(_ context.Context, filter domain.UserFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, u := range r.users {
		if filter.Matches(u) {
			delete(r.users, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryUserRepository) find(match func(domain.User) bool) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

// update aplica fn bajo lock; si fn devuelve false se trata como fila no encontrada.
func (r *MemoryUserRepository) update(id string, fn func(*domain.User) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if !fn(&u) {
		return pgx.ErrNoRows
	}
	r.users[id] = u
	return nil
}

func cloneUser(u domain.User) domain.User {
	u.RefreshToken = clonePtr(u.RefreshToken)
	u.SessionStartedAt = clonePtr(u.SessionStartedAt)
	u.LastActivityAt = clonePtr(u.LastActivityAt)
	u.EmailVerificationToken = clonePtr(u.EmailVerificationToken)
	u.EmailVerificationExpires = clonePtr(u.EmailVerificationExpires)
	u.PasswordResetToken = clonePtr(u.PasswordResetToken)
	u.PasswordResetExpires = clonePtr(u.PasswordResetExpires)
	return u
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func ptr[T any](v T) *T {
	return &v
}
