package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count  int
	expiry time.Time
}

// MemoryLimiter is the in-process fixed-window counter used when Redis is
// not configured, and in tests. Expired windows are dropped lazily on the
// next Check for the same identifier.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	max     int
	window  time.Duration
	now     func() time.Time
}

func NewMemoryLimiter(max int, windowDur time.Duration) *MemoryLimiter {
	if max <= 0 {
		max = 20
	}
	if windowDur <= 0 {
		windowDur = 60 * time.Second
	}
	return &MemoryLimiter{
		windows: make(map[string]*window),
		max:     max,
		window:  windowDur,
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Check(ctx context.Context, identifier string) (bool, error) {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identifier]
	if !ok || now.After(w.expiry) {
		w = &window{expiry: now.Add(l.window)}
		l.windows[identifier] = w
	}
	w.count++
	return w.count <= l.max, nil
}

func (l *MemoryLimiter) Reset(ctx context.Context, identifier string) error {
	_ = ctx

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, identifier)
	return nil
}
