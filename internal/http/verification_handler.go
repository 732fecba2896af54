package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/service"
)

// VerificationHandler expone verificacion de email y reenvio.
type VerificationHandler struct {
	logger   *zap.Logger
	verifier *service.VerificationService
}

func NewVerificationHandler(logger *zap.Logger, verifier *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{logger: logger, verifier: verifier}
}

// VerifyEmail maneja GET /auth/verify-email?token=.
func (h *VerificationHandler) VerifyEmail(c *gin.Context) {
	user, err := h.verifier.Verify(c.Request.Context(), c.Query("token"))
	if err != nil {
		writeServiceError(c, h.logger, "verify email", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "email verified", "user": user})
}

// ResendVerification maneja POST /auth/verify-email.
func (h *VerificationHandler) ResendVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid resend verification request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.verifier.Resend(c.Request.Context(), req.Email); err != nil {
		writeServiceError(c, h.logger, "resend verification", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "verification email sent"})
}
