package service

import (
	"context"
	"sync"

	"vibe-next/internal/domain"
)

// SessionEvents notifica cambios de sesion a los clientes suscritos.
type SessionEvents interface {
	Publish(ctx context.Context, event domain.SessionEvent)
	Subscribe(ctx context.Context, userID string) (<-chan domain.SessionEvent, func())
}

const sessionEventBuffer = 8

type MemorySessionEvents struct {
	mu   sync.RWMutex
	subs map[string]map[chan domain.SessionEvent]struct{}
}

func NewMemorySessionEvents() *MemorySessionEvents {
	return &MemorySessionEvents{subs: make(map[string]map[chan domain.SessionEvent]struct{})}
}

// Publish nunca bloquea: si un suscriptor esta lleno el evento se descarta para el.
func (b *MemorySessionEvents) Publish(_ context.Context, event domain.SessionEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[event.UserID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func (b *MemorySessionEvents) Subscribe(_ context.Context, userID string) (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent, sessionEventBuffer)
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan domain.SessionEvent]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

type noopSessionEvents struct{}

func (noopSessionEvents) Publish(context.Context, domain.SessionEvent) {}

func (noopSessionEvents) Subscribe(context.Context, string) (<-chan domain.SessionEvent, func()) {
	ch := make(chan domain.SessionEvent)
	close(ch)
	return ch, func() {}
}
