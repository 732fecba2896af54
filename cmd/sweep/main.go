package main

import (
	"context"
	"log"
	"time"

	"vibe-next/internal/config"
	"vibe-next/internal/db"
	"vibe-next/internal/email"
	"vibe-next/internal/repository"
	"vibe-next/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// sweep borra una vez las cuentas no verificadas vencidas; pensado para un scheduler externo.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	verifier := service.NewVerificationService(
		logger,
		repository.NewPgUserRepository(pool),
		email.NewDisabledSender("sweep does not send email"),
		nil,
		service.VerificationConfig{TTL: cfg.VerificationTTL},
	)
	deleted, err := verifier.SweepExpired(ctx)
	if err != nil {
		logger.Fatal("sweep failed", zap.Error(err))
	}
	logger.Info("sweep done", zap.Int64("deleted", deleted))
}
