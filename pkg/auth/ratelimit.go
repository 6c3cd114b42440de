package auth

import (
	"context"
	"sync"
	"time"
)

// FailureLimiter throttles peers that keep presenting bad credentials.
type FailureLimiter interface {
	// Allow returns ErrTooManyRequests while key is blocked.
	Allow(ctx context.Context, key string) error

	// Fail records a failed attempt for key.
	Fail(ctx context.Context, key string)

	// Reset forgets the failures of key after a successful attempt.
	Reset(ctx context.Context, key string)
}

// InProcessLimiter is a fixed-window failure counter kept in memory.
type InProcessLimiter struct {
	maxFailures int
	window      time.Duration
	now         func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// sweepThreshold triggers removal of expired counters.
const sweepThreshold = 10_000

// NewInProcessLimiter creates a limiter that blocks a key after
// maxFailures failures within window. maxFailures <= 0 disables it.
func NewInProcessLimiter(maxFailures int, window time.Duration) *InProcessLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &InProcessLimiter{
		maxFailures: maxFailures,
		window:      window,
		now:         time.Now,
		counters:    make(map[string]*counter),
	}
}

// Allow checks whether key may attempt authentication.
func (l *InProcessLimiter) Allow(_ context.Context, key string) error {
	if l.maxFailures <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok || l.now().Sub(c.windowAt) >= l.window {
		return nil
	}
	if c.count >= l.maxFailures {
		return ErrTooManyRequests
	}
	return nil
}

// Fail records one failure for key.
func (l *InProcessLimiter) Fail(_ context.Context, key string) {
	if l.maxFailures <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= l.window {
		if len(l.counters) >= sweepThreshold {
			l.sweep(now)
		}
		// New window.
		l.counters[key] = &counter{count: 1, windowAt: now}
		return
	}
	c.count++
}

// Reset clears key.
func (l *InProcessLimiter) Reset(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counters, key)
}

// sweep drops expired windows. Must be called with l.mu held.
func (l *InProcessLimiter) sweep(now time.Time) {
	for k, c := range l.counters {
		if now.Sub(c.windowAt) >= l.window {
			delete(l.counters, k)
		}
	}
}
