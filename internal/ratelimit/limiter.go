// Package ratelimit ограничивает частоту входящих команд по ключу.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter решает, можно ли обработать еще одно событие для key.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// NoopLimiter пропускает все события.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) bool { return true }

type bucket struct {
	start time.Time
	count int
}

// MemoryLimiter считает запросы в фиксированном окне в памяти процесса.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]bucket
}

// NewMemoryLimiter создает MemoryLimiter на limit событий за window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) bool {
	if l.limit <= 0 || l.window <= 0 || key == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	current, ok := l.windows[key]
	if !ok || now.Sub(current.start) >= l.window {
		l.evict(now)
		l.windows[key] = bucket{start: now, count: 1}
		return true
	}
	if current.count >= l.limit {
		return false
	}
	current.count++
	l.windows[key] = current
	return true
}

func (l *MemoryLimiter) evict(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.window {
			delete(l.windows, key)
		}
	}
}
