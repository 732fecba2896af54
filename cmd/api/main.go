package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vibe-next/internal/config"
	"vibe-next/internal/db"
	"vibe-next/internal/email"
	apihttp "vibe-next/internal/http"
	"vibe-next/internal/repository"
	"vibe-next/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	var (
		userRepo    repository.UserRepository
		commentRepo repository.CommentRepository
		store       apihttp.Pinger
	)
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		userRepo = repository.NewMemoryUserRepository()
		commentRepo = repository.NewMemoryCommentRepository()
	default:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool); err != nil {
				logger.Fatal("db migrate", zap.Error(err))
			}
		}
		userRepo = repository.NewPgUserRepository(pool)
		commentRepo = repository.NewPgCommentRepository(pool)
		store = pool
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
			BaseURL:  cfg.PublicBaseURL,
		})
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		emailLimiter = service.NewEmailRateLimiter(cfg.EmailRateWindow, cfg.EmailRateMax)
		events       service.SessionEvents = service.NewMemorySessionEvents()
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			emailLimiter = service.NewRedisEmailRateLimiter(redisClient, cfg.EmailRateWindow, cfg.EmailRateMax)
			events = service.NewRedisSessionEvents(logger, redisClient)
		}
		cancel()
	}

	tokens := service.NewTokenCodec(service.TokenCodecConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
		Issuer:        cfg.JWTIssuer,
	})
	hasher := service.NewBcryptHasher(cfg.BcryptCost)

	verifier := service.NewVerificationService(logger, userRepo, emailSender, emailLimiter, service.VerificationConfig{
		TTL: cfg.VerificationTTL,
	})
	sessions := service.NewSessionService(logger, userRepo, hasher, tokens, verifier, events, service.SessionConfig{
		MaxSessionDuration:   cfg.MaxSessionDuration,
		RequireVerifiedEmail: cfg.RequireVerifiedLogin,
	})
	resets := service.NewPasswordResetService(logger, userRepo, hasher, emailSender, emailLimiter, verifier, events, service.PasswordResetConfig{
		TTL: cfg.PasswordResetTTL,
	})
	guard := service.NewGuard(tokens, userRepo, verifier)
	comments := service.NewCommentService(logger, commentRepo, nil)

	router := apihttp.NewRouter(logger, apihttp.RouterConfig{
		Guard:          guard,
		Auth:           apihttp.NewAuthHandler(logger, sessions, guard, events, cfg.IsProduction()),
		Verification:   apihttp.NewVerificationHandler(logger, verifier),
		Password:       apihttp.NewPasswordHandler(logger, resets),
		Comments:       apihttp.NewCommentHandler(logger, comments),
		Admin:          apihttp.NewAdminHandler(logger, verifier, cfg.CronSecret),
		Store:          store,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	if cfg.SweepInterval > 0 {
		go service.NewSweeper(logger, verifier, cfg.SweepInterval).Run(ctx)
	}

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	return logger
}
