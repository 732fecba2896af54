package http

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/service"
)

// AdminHandler expone el barrido de cuentas no verificadas.
type AdminHandler struct {
	logger     *zap.Logger
	verifier   *service.VerificationService
	cronSecret string
}

func NewAdminHandler(logger *zap.Logger, verifier *service.VerificationService, cronSecret string) *AdminHandler {
	return &AdminHandler{logger: logger, verifier: verifier, cronSecret: strings.TrimSpace(cronSecret)}
}

// CleanupStats maneja GET /admin/cleanup-expired-users.
func (h *AdminHandler) CleanupStats(c *gin.Context) {
	stats, err := h.verifier.Stats(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, "cleanup stats", err)
		return
	}
	respond(c, http.StatusOK, stats)
}

// Cleanup maneja POST /admin/cleanup-expired-users.
func (h *AdminHandler) Cleanup(c *gin.Context) {
	h.sweep(c)
}

// CronCleanup maneja GET /cron/cleanup-users; exige Bearer CRON_SECRET si esta configurado.
func (h *AdminHandler) CronCleanup(c *gin.Context) {
	if h.cronSecret != "" {
		presented := strings.TrimSpace(c.GetHeader("Authorization"))
		expected := "Bearer " + h.cronSecret
		if subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) != 1 {
			respondError(c, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	h.sweep(c)
}

func (h *AdminHandler) sweep(c *gin.Context) {
	deleted, err := h.verifier.SweepExpired(c.Request.Context())
	if err != nil {
		writeServiceError(c, h.logger, "cleanup expired users", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"deletedCount": deleted})
}
