package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vibe-next/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	FindByIdentity(ctx context.Context, username, email, nickname string) (domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (domain.User, error)
	GetByResetToken(ctx context.Context, token string) (domain.User, error)
	StartSession(ctx context.Context, id, refreshToken string, at time.Time) error
	RotateRefreshToken(ctx context.Context, id, presented, next string, at time.Time) (bool, error)
	ClearRefreshToken(ctx context.Context, id string, at time.Time) error
	SetEmailVerification(ctx context.Context, id, token string, expiresAt, at time.Time) error
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	SetPasswordReset(ctx context.Context, id, token string, expiresAt, at time.Time) error
	ResetPassword(ctx context.Context, id, passwordHash string, at time.Time) error
	Delete(ctx context.Context, id string) error
	CountWhere(ctx context.Context, filter domain.UserFilter) (int64, error)
	DeleteWhere(ctx context.Context, filter domain.UserFilter) (int64, error)
}

const userColumns = `
	id, username, email, nickname, role, password_hash,
	refresh_token, session_started_at, last_activity_at,
	email_verified, email_verification_token, email_verification_expires,
	password_reset_token, password_reset_expires,
	created_at, updated_at
`

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool pgxQuerier
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (
			id, username, email, nickname, role, password_hash,
			refresh_token, session_started_at, last_activity_at,
			email_verified, email_verification_token, email_verification_expires,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Nickname,
		string(user.Role),
		user.PasswordHash,
		user.RefreshToken,
		user.SessionStartedAt,
		user.LastActivityAt,
		user.EmailVerified,
		user.EmailVerificationToken,
		user.EmailVerificationExpires,
		user.CreatedAt,
		user.UpdatedAt,
	)
	return mapPgError(err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, `WHERE username = $1`, username)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, `WHERE email = $1`, email)
}

func (r *PgUserRepository) FindByIdentity(ctx context.Context, username, email, nickname string) (domain.User, error) {
	return r.getOne(ctx, `WHERE username = $1 OR email = $2 OR nickname = $3 LIMIT 1`, username, email, nickname)
}

func (r *PgUserRepository) GetByVerificationToken(ctx context.Context, token string) (domain.User, error) {
	return r.getOne(ctx, `WHERE email_verification_token = $1`, token)
}

func (r *PgUserRepository) GetByResetToken(ctx context.Context, token string) (domain.User, error) {
	return r.getOne(ctx, `WHERE password_reset_token = $1`, token)
}

func (r *PgUserRepository) StartSession(ctx context.Context, id, refreshToken string, at time.Time) error {
	const query = `
		UPDATE users
		SET refresh_token = $2, session_started_at = $3, last_activity_at = $3, updated_at = $3
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, refreshToken, at)
}

// RotateRefreshToken reemplaza el refresh token solo si el almacenado sigue siendo presented.
func (r *PgUserRepository) RotateRefreshToken(ctx context.Context, id, presented, next string, at time.Time) (bool, error) {
	const query = `
		UPDATE users
		SET refresh_token = $3, last_activity_at = $4, updated_at = $4
		WHERE id = $1 AND refresh_token = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, presented, next, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgUserRepository) ClearRefreshToken(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE users
		SET refresh_token = NULL, last_activity_at = $2, updated_at = $2
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

func (r *PgUserRepository) SetEmailVerification(ctx context.Context, id, token string, expiresAt, at time.Time) error {
	const query = `
		UPDATE users
		SET email_verification_token = $2, email_verification_expires = $3, updated_at = $4
		WHERE id = $1 AND NOT email_verified
	`
	return r.execOne(ctx, query, id, token, expiresAt, at)
}

func (r *PgUserRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE users
		SET email_verified = TRUE, email_verification_token = NULL, email_verification_expires = NULL, updated_at = $2
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, at)
}

func (r *PgUserRepository) SetPasswordReset(ctx context.Context, id, token string, expiresAt, at time.Time) error {
	const query = `
		UPDATE users
		SET password_reset_token = $2, password_reset_expires = $3, updated_at = $4
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, token, expiresAt, at)
}

// ResetPassword reemplaza el hash, consume el token de reseteo y revoca la sesion activa.
func (r *PgUserRepository) ResetPassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	const query = `
		UPDATE users
		SET password_hash = $2, password_reset_token = NULL, password_reset_expires = NULL,
			refresh_token = NULL, updated_at = $3
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, passwordHash, at)
}

func (r *PgUserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

func (r *PgUserRepository) CountWhere(ctx context.Context, filter domain.UserFilter) (int64, error) {
	where, args := buildUserFilter(filter)
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgUserRepository) DeleteWhere(ctx context.Context, filter domain.UserFilter) (int64, error) {
	where, args := buildUserFilter(filter)
	if where == "" {
		return 0, errors.New("refusing to delete users without a filter")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM users`+where, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgUserRepository) getOne(ctx context.Context, where string, args ...any) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ` + where
	var (
		u    domain.User
		role string
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Nickname,
		&role,
		&u.PasswordHash,
		&u.RefreshToken,
		&u.SessionStartedAt,
		&u.LastActivityAt,
		&u.EmailVerified,
		&u.EmailVerificationToken,
		&u.EmailVerificationExpires,
		&u.PasswordResetToken,
		&u.PasswordResetExpires,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (r *PgUserRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func buildUserFilter(f domain.UserFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Verified != nil {
		args = append(args, *f.Verified)
		clauses = append(clauses, fmt.Sprintf("email_verified = $%d", len(args)))
	}
	if f.VerificationExpiresBefore != nil {
		args = append(args, *f.VerificationExpiresBefore)
		clauses = append(clauses, fmt.Sprintf("email_verification_expires < $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
