package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vibe-next/internal/service"
)

// Pinger permite al health check consultar el almacenamiento.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Guard          *service.Guard
	Auth           *AuthHandler
	Verification   *VerificationHandler
	Password       *PasswordHandler
	Comments       *CommentHandler
	Admin          *AdminHandler
	Store          Pinger
	AllowedOrigins []string
}

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(logger *zap.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery, CORS y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), corsMiddleware(cfg.AllowedOrigins), jsonContentTypeMiddleware())

	r.GET("/healthz", healthHandler(cfg.Store))

	authRequired := AuthRequired(logger, cfg.Guard)

	auth := r.Group("/auth")
	auth.POST("/register", cfg.Auth.Register)
	auth.POST("/login", cfg.Auth.Login)
	auth.POST("/refresh", cfg.Auth.Refresh)
	auth.POST("/logout", cfg.Auth.Logout)
	auth.GET("/me", authRequired, cfg.Auth.Me)
	auth.GET("/events", authRequired, cfg.Auth.Events)
	auth.GET("/verify-email", cfg.Verification.VerifyEmail)
	auth.POST("/verify-email", cfg.Verification.ResendVerification)
	auth.POST("/forgot-password", cfg.Password.ForgotPassword)
	auth.GET("/reset-password", cfg.Password.CheckResetToken)
	auth.POST("/reset-password", cfg.Password.ResetPassword)

	comments := r.Group("/comments", authRequired)
	comments.POST("", cfg.Comments.CreateComment)
	comments.PUT("/:id", cfg.Comments.UpdateComment)
	comments.DELETE("/:id", cfg.Comments.DeleteComment)

	admin := r.Group("/admin", AdminRequired(logger, cfg.Guard))
	admin.GET("/cleanup-expired-users", cfg.Admin.CleanupStats)
	admin.POST("/cleanup-expired-users", cfg.Admin.Cleanup)

	r.GET("/cron/cleanup-users", cfg.Admin.CronCleanup)

	return r
}

func healthHandler(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				respondError(c, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		respond(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

// corsMiddleware habilita credenciales solo para los origenes configurados.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins[o] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := origins[origin]; ok && origin != "" {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
