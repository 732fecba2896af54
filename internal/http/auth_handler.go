package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/service"
)

// AuthHandler mantiene dependencias para endpoints de sesion.
type AuthHandler struct {
	logger       *zap.Logger
	sessions     *service.SessionService
	guard        *service.Guard
	events       service.SessionEvents
	secureCookie bool
	heartbeat    time.Duration
}

// NewAuthHandler crea una instancia de AuthHandler con dependencias necesarias.
func NewAuthHandler(logger *zap.Logger, sessions *service.SessionService, guard *service.Guard, events service.SessionEvents, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		logger:       logger,
		sessions:     sessions,
		guard:        guard,
		events:       events,
		secureCookie: secureCookie,
		heartbeat:    25 * time.Second,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Nickname string `json:"nickname" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.sessions.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		writeServiceError(c, h.logger, "register", err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}

	tokens, err := h.sessions.Login(c.Request.Context(), service.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(c, h.logger, "login", err)
		return
	}
	setRefreshCookie(c, tokens.RefreshToken, h.secureCookie)
	respond(c, http.StatusOK, gin.H{
		"accessToken": tokens.AccessToken,
		"expiresIn":   tokens.ExpiresIn,
		"user":        tokens.User,
	})
}

// Refresh maneja POST /auth/refresh; el refresh token solo se lee de la cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	tokens, err := h.sessions.Refresh(c.Request.Context(), refreshCookie(c))
	if err != nil {
		writeServiceError(c, h.logger, "refresh", err)
		return
	}
	setRefreshCookie(c, tokens.RefreshToken, h.secureCookie)
	respond(c, http.StatusOK, gin.H{
		"accessToken": tokens.AccessToken,
		"expiresIn":   tokens.ExpiresIn,
	})
}

// Logout maneja POST /auth/logout; la cookie se borra siempre.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := h.guard.IdentifyCaller(c.GetHeader("Authorization"))
	if !ok {
		userID = h.sessions.LogoutUserID(refreshCookie(c))
	}
	clearRefreshCookie(c, h.secureCookie)
	if err := h.sessions.Logout(c.Request.Context(), userID); err != nil {
		writeServiceError(c, h.logger, "logout", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "logged out"})
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

// Events maneja GET /auth/events como stream SSE de eventos de sesion.
func (h *AuthHandler) Events(c *gin.Context) {
	user, ok := CurrentUser(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	ctx := c.Request.Context()
	events, cancel := h.events.Subscribe(ctx, user.ID)
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.SSEvent("ready", gin.H{"userId": user.ID})
	c.Writer.Flush()
	c.Stream(func(_ io.Writer) bool {
		select {
		case event, open := <-events:
			if !open {
				return false
			}
			c.SSEvent("session", event)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
