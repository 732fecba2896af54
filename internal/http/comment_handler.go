package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/service"
)

// CommentHandler expone comentarios; editar y borrar exigen dueno o admin.
type CommentHandler struct {
	logger   *zap.Logger
	comments *service.CommentService
}

func NewCommentHandler(logger *zap.Logger, comments *service.CommentService) *CommentHandler {
	return &CommentHandler{logger: logger, comments: comments}
}

type commentRequest struct {
	MangaID string `json:"mangaId"`
	Content string `json:"content"`
}

// CreateComment maneja POST /comments.
func (h *CommentHandler) CreateComment(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	comment, err := h.comments.Create(c.Request.Context(), user, req.MangaID, req.Content)
	if err != nil {
		writeServiceError(c, h.logger, "create comment", err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"comment": comment})
}

// UpdateComment maneja PUT /comments/:id.
func (h *CommentHandler) UpdateComment(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	comment, err := h.comments.Edit(c.Request.Context(), user, c.Param("id"), req.Content)
	if err != nil {
		writeServiceError(c, h.logger, "update comment", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment maneja DELETE /comments/:id.
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.comments.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		writeServiceError(c, h.logger, "delete comment", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "comment deleted"})
}
