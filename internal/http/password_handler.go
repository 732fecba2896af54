package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/service"
)

// PasswordHandler expone el flujo de olvido y restablecimiento de contrasena.
type PasswordHandler struct {
	logger *zap.Logger
	resets *service.PasswordResetService
}

func NewPasswordHandler(logger *zap.Logger, resets *service.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{logger: logger, resets: resets}
}

// ForgotPassword maneja POST /auth/forgot-password.
func (h *PasswordHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid forgot password request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.resets.Request(c.Request.Context(), req.Email); err != nil {
		writeServiceError(c, h.logger, "forgot password", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "if the email exists, a reset link was sent"})
}

// CheckResetToken maneja GET /auth/reset-password?token=.
func (h *PasswordHandler) CheckResetToken(c *gin.Context) {
	if err := h.resets.Check(c.Request.Context(), c.Query("token")); err != nil {
		writeServiceError(c, h.logger, "check reset token", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"valid": true})
}

// ResetPassword maneja POST /auth/reset-password.
func (h *PasswordHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reset password request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.resets.Reset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(c, h.logger, "reset password", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "password updated"})
}
