package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
	"vibe-next/internal/service"
)

const currentUserKey = "current_user"

// AuthRequired exige un bearer valido y guarda el usuario en el contexto.
func AuthRequired(logger *zap.Logger, guard *service.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := guard.RequireAuthenticated(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			writeServiceError(c, logger, "authenticate", err)
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// AdminRequired exige ademas rol admin.
func AdminRequired(logger *zap.Logger, guard *service.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := guard.RequireAdmin(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			writeServiceError(c, logger, "authorize admin", err)
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser obtiene el usuario autenticado desde el contexto.
func CurrentUser(c *gin.Context) (domain.User, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := val.(domain.User)
	return user, ok
}
