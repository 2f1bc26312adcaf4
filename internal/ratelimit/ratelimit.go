package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// InMemoryRateLimiter keeps one token bucket per key in process memory.
// Buckets idle for longer than maxAge are dropped by a cleanup goroutine.
type InMemoryRateLimiter struct {
	rate  rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*entry

	cleanupInterval time.Duration
	maxAge          time.Duration
	now             func() time.Time

	stopOnce    sync.Once
	stopCleanup chan struct{}
}

// NewInMemoryRateLimiter allows rps requests per second per key with bursts
// of up to burst requests.
func NewInMemoryRateLimiter(rps float64, burst int) *InMemoryRateLimiter {
	l := newInMemoryRateLimiter(rps, burst, time.Now)
	go l.cleanup()
	return l
}

func newInMemoryRateLimiter(rps float64, burst int, now func() time.Time) *InMemoryRateLimiter {
	return &InMemoryRateLimiter{
		rate:            rate.Limit(rps),
		burst:           burst,
		entries:         make(map[string]*entry),
		cleanupInterval: 5 * time.Minute,
		maxAge:          10 * time.Minute,
		now:             now,
		stopCleanup:     make(chan struct{}),
	}
}

// Allow reports whether one more request from key fits in its bucket.
func (l *InMemoryRateLimiter) Allow(_ context.Context, key string) bool {
	now := l.now()

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (l *InMemoryRateLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeIdle()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *InMemoryRateLimiter) removeIdle() int {
	cutoff := l.now().Add(-l.maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *InMemoryRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (l *InMemoryRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}
