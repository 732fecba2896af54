package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vibe-next/internal/domain"
)

type CommentRepository interface {
	Create(ctx context.Context, comment domain.Comment) error
	GetByID(ctx context.Context, id string) (domain.Comment, error)
	UpdateContent(ctx context.Context, id, content string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type PgCommentRepository struct {
	pool pgxQuerier
}

func NewPgCommentRepository(pool *pgxpool.Pool) *PgCommentRepository {
	return &PgCommentRepository{pool: pool}
}

func (r *PgCommentRepository) Create(ctx context.Context, comment domain.Comment) error {
	const query = `
		INSERT INTO comments (id, manga_id, user_id, username, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		comment.ID,
		comment.MangaID,
		comment.UserID,
		comment.Username,
		comment.Content,
		comment.CreatedAt,
		comment.UpdatedAt,
	)
	return mapPgError(err)
}

func (r *PgCommentRepository) GetByID(ctx context.Context, id string) (domain.Comment, error) {
	const query = `
		SELECT id, manga_id, user_id, username, content, created_at, updated_at
		FROM comments
		WHERE id = $1
	`
	var c domain.Comment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.MangaID,
		&c.UserID,
		&c.Username,
		&c.Content,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

func (r *PgCommentRepository) UpdateContent(ctx context.Context, id, content string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE comments SET content = $2, updated_at = $3 WHERE id = $1`, id, content, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgCommentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return err
}

type MemoryCommentRepository struct {
	mu       sync.Mutex
	comments map[string]domain.Comment
}

func NewMemoryCommentRepository() *MemoryCommentRepository {
	return &MemoryCommentRepository{comments: make(map[string]domain.Comment)}
}

func (r *MemoryCommentRepository) Create(_ context.Context, comment domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[comment.ID]; ok {
		return ErrDuplicate
	}
	r.comments[comment.ID] = comment
	return nil
}

func (r *MemoryCommentRepository) GetByID(_ context.Context, id string) (domain.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return domain.Comment{}, pgx.ErrNoRows
	}
	return c, nil
}

func (r *MemoryCommentRepository) UpdateContent(_ context.Context, id, content string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.Content = content
	c.UpdatedAt = at
	r.comments[id] = c
	return nil
}

func (r *MemoryCommentRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.comments, id)
	return nil
}
