package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/service"
)

// respond escribe el sobre {success, data}.
func respond(c *gin.Context, status int, data any) {
	body := gin.H{"success": true}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

type errorMapping struct {
	target  error
	status  int
	message string
}

// El orden importa: ErrSessionExpired envuelve ErrUnauthenticated.
var errorMappings = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid input"},
	{service.ErrTokenExpired, http.StatusBadRequest, "token expired"},
	{service.ErrTokenInvalid, http.StatusBadRequest, "invalid or expired token"},
	{service.ErrAlreadyVerified, http.StatusBadRequest, "email already verified"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
	{service.ErrSessionExpired, http.StatusUnauthorized, "session expired"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "authentication required"},
	{service.ErrEmailNotVerified, http.StatusForbidden, "email not verified"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{service.ErrNotFound, http.StatusNotFound, "not found"},
	{service.ErrConflict, http.StatusConflict, "username, email or nickname already registered"},
	{service.ErrRateLimited, http.StatusTooManyRequests, "too many requests"},
	{service.ErrEmailSendFailure, http.StatusInternalServerError, "could not send email"},
	{service.ErrConfig, http.StatusInternalServerError, "server misconfigured"},
}

func statusFor(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// writeServiceError traduce errores de servicio al sobre; los 5xx se loguean.
func writeServiceError(c *gin.Context, logger *zap.Logger, op string, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	}
	if errors.Is(err, service.ErrInvalidInput) {
		message = err.Error()
	}
	body := gin.H{"success": false, "error": message}
	if errors.Is(err, service.ErrTokenExpired) {
		body["tokenExpired"] = true
	}
	c.AbortWithStatusJSON(status, body)
}
