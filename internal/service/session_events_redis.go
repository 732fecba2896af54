package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
)

type redisPubSuber interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// RedisSessionEvents reparte eventos de sesion entre replicas via pub/sub.
type RedisSessionEvents struct {
	logger *zap.Logger
	client redisPubSuber
	prefix string
}

func NewRedisSessionEvents(logger *zap.Logger, client *redis.Client) *RedisSessionEvents {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSessionEvents{logger: logger, client: client, prefix: "auth:session:"}
}

func (r *RedisSessionEvents) Publish(ctx context.Context, event domain.SessionEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn("encode session event failed", zap.Error(err))
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 500*time.Millisecond)
	defer cancel()
	if err := r.client.Publish(pubCtx, r.prefix+event.UserID, payload).Err(); err != nil {
		r.logger.Warn("publish session event failed", zap.Error(err), zap.String("user_id", event.UserID))
	}
}

func (r *RedisSessionEvents) Subscribe(ctx context.Context, userID string) (<-chan domain.SessionEvent, func()) {
	pubsub := r.client.Subscribe(ctx, r.prefix+userID)
	out := make(chan domain.SessionEvent, sessionEventBuffer)
	done := make(chan struct{})

	go func() {
		defer close(out)
		msgs := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.SessionEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					r.logger.Warn("decode session event failed", zap.Error(err))
					continue
				}
				select {
				case out <- event:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = pubsub.Close()
		})
	}
	return out, cancel
}
