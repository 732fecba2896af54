package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
	"vibe-next/internal/repository"
)

const maxCommentLength = 2000

// CommentService aplica la regla de propiedad sobre comentarios.
type CommentService struct {
	logger   *zap.Logger
	comments repository.CommentRepository
	now      func() time.Time
}

func NewCommentService(logger *zap.Logger, comments repository.CommentRepository, now func() time.Time) *CommentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &CommentService{logger: logger, comments: comments, now: now}
}

func (s *CommentService) Create(ctx context.Context, author domain.User, mangaID, content string) (domain.Comment, error) {
	mangaID = strings.TrimSpace(mangaID)
	if mangaID == "" {
		return domain.Comment{}, fmt.Errorf("%w: mangaId is required", ErrInvalidInput)
	}
	content, err := cleanContent(content)
	if err != nil {
		return domain.Comment{}, err
	}
	now := s.now().UTC()
	comment := domain.Comment{
		ID:        uuid.NewString(),
		MangaID:   mangaID,
		UserID:    author.ID,
		Username:  author.Username,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

func (s *CommentService) Edit(ctx context.Context, caller domain.User, id, content string) (domain.Comment, error) {
	comment, err := s.authorize(ctx, caller, id)
	if err != nil {
		return domain.Comment{}, err
	}
	content, err = cleanContent(content)
	if err != nil {
		return domain.Comment{}, err
	}
	now := s.now().UTC()
	if err := s.comments.UpdateContent(ctx, comment.ID, content, now); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Comment{}, ErrNotFound
		}
		return domain.Comment{}, err
	}
	comment.Content = content
	comment.UpdatedAt = now
	return comment, nil
}

func (s *CommentService) Delete(ctx context.Context, caller domain.User, id string) error {
	comment, err := s.authorize(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.comments.Delete(ctx, comment.ID); err != nil {
		return err
	}
	if caller.ID != comment.UserID {
		s.logger.Info("comment removed by admin", zap.String("comment_id", comment.ID), zap.String("admin_id", caller.ID))
	}
	return nil
}

func (s *CommentService) authorize(ctx context.Context, caller domain.User, id string) (domain.Comment, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Comment{}, ErrNotFound
	}
	comment, err := s.comments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Comment{}, ErrNotFound
		}
		return domain.Comment{}, err
	}
	if !CanMutate(caller, comment.UserID) {
		return domain.Comment{}, ErrForbidden
	}
	return comment, nil
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > maxCommentLength {
		return "", fmt.Errorf("%w: content too long", ErrInvalidInput)
	}
	return content, nil
}
