package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vibe-next/internal/domain"
)

func TestMemorySessionEvents_FanOut(t *testing.T) {
	bus := NewMemorySessionEvents()
	first, cancelFirst := bus.Subscribe(context.Background(), "u1")
	second, cancelSecond := bus.Subscribe(context.Background(), "u1")
	other, cancelOther := bus.Subscribe(context.Background(), "u2")
	defer cancelSecond()
	defer cancelOther()

	bus.Publish(context.Background(), domain.SessionEvent{UserID: "u1", Kind: domain.SessionLoggedOut})

	for _, ch := range []<-chan domain.SessionEvent{first, second} {
		select {
		case ev := <-ch:
			if ev.Kind != domain.SessionLoggedOut {
				t.Fatalf("unexpected event %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event")
		}
	}
	select {
	case ev := <-other:
		t.Fatalf("event leaked to another user: %+v", ev)
	default:
	}

	cancelFirst()
	cancelFirst()
	if _, ok := <-first; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	bus.Publish(context.Background(), domain.SessionEvent{UserID: "u1", Kind: domain.SessionRevoked})
}

func TestMemorySessionEvents_PublishNeverBlocks(t *testing.T) {
	bus := NewMemorySessionEvents()
	_, cancel := bus.Subscribe(context.Background(), "u1")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < sessionEventBuffer*4; i++ {
			bus.Publish(context.Background(), domain.SessionEvent{UserID: "u1", Kind: domain.SessionRefreshed})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
}

type mockPubSuber struct {
	channel string
	payload []byte
	err     error
}

func (m *mockPubSuber) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	m.channel = channel
	m.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	cmd.SetVal(1)
	return cmd
}

func (m *mockPubSuber) Subscribe(context.Context, ...string) *redis.PubSub {
	return nil
}

func TestRedisSessionEvents_Publish(t *testing.T) {
	mock := &mockPubSuber{}
	bus := &RedisSessionEvents{logger: zap.NewNop(), client: mock, prefix: "auth:session:"}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	bus.Publish(context.Background(), domain.SessionEvent{UserID: "u1", Kind: domain.SessionExpired, At: at})
	if mock.channel != "auth:session:u1" {
		t.Fatalf("unexpected channel %q", mock.channel)
	}
	var ev domain.SessionEvent
	if err := json.Unmarshal(mock.payload, &ev); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if ev.Kind != domain.SessionExpired || !ev.At.Equal(at) {
		t.Fatalf("unexpected payload %+v", ev)
	}

	mock.err = errors.New("redis down")
	bus.Publish(context.Background(), domain.SessionEvent{UserID: "u1", Kind: domain.SessionRevoked})
}
