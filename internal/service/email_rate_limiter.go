package service

import (
	"strings"
	"sync"
	"time"
)

// EmailRateLimiter limita la frecuencia de correos salientes por direccion.
type EmailRateLimiter interface {
	Allow(key string) bool
}

type emailRateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	now    func() time.Time
	hits   map[string][]time.Time
}

// NewEmailRateLimiter crea un rate limiter en memoria.
func NewEmailRateLimiter(window time.Duration, max int) EmailRateLimiter {
	return newEmailRateLimiter(window, max, time.Now)
}

func newEmailRateLimiter(window time.Duration, max int, now func() time.Time) *emailRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &emailRateLimiter{
		window: window,
		max:    max,
		now:    now,
		hits:   make(map[string][]time.Time),
	}
}

func (l *emailRateLimiter) Allow(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now().UTC()
	cutoff := now.Add(-l.window)
	entries := l.hits[key]
	kept := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	kept = append(kept, now)
	l.hits[key] = kept
	return true
}

// allowAll se usa cuando no hay limiter configurado.
type allowAll struct{}

func (allowAll) Allow(string) bool { return true }
