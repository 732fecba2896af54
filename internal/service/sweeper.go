package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type expiredSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper borra periodicamente las cuentas no verificadas vencidas.
type Sweeper struct {
	logger   *zap.Logger
	target   expiredSweeper
	interval time.Duration
	timeout  time.Duration
}

func NewSweeper(logger *zap.Logger, target expiredSweeper, interval time.Duration) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{logger: logger, target: target, interval: interval, timeout: 30 * time.Second}
}

// Run barre una vez al arrancar y luego en cada tick hasta que ctx se cancela.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.sweepOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	deleted, err := s.target.SweepExpired(sweepCtx)
	if err != nil {
		s.logger.Warn("scheduled sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled sweep done", zap.Int64("deleted", deleted))
}
