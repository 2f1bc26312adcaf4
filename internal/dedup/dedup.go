// Package dedup drops webhook events LINE redelivers.
package dedup

import (
	"context"
	"sync"
	"time"
)

// Deduper remembers event IDs for a while.
type Deduper interface {
	// Seen records id and reports whether it had already been recorded
	// within the retention window.
	Seen(ctx context.Context, id string) bool
}

// TTLCache is an in-memory Deduper. Entries expire after ttl and the cache
// never holds more than maxEntries; when full, the oldest entry is evicted.
// It is suitable for single-instance deployments.
type TTLCache struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
	order   []stamp // insertion order, may contain stale stamps

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// stamp is one insertion. It is stale once entries holds a different time
// for id.
type stamp struct {
	id string
	at time.Time
}

// NewTTLCache creates a cache and starts its cleanup goroutine.
func NewTTLCache(ttl time.Duration, maxEntries int) *TTLCache {
	c := newTTLCache(ttl, maxEntries, time.Now)
	go c.cleanup()
	return c
}

func newTTLCache(ttl time.Duration, maxEntries int, now func() time.Time) *TTLCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	return &TTLCache{
		ttl:             ttl,
		maxEntries:      maxEntries,
		now:             now,
		entries:         make(map[string]time.Time),
		cleanupInterval: interval,
		stopCleanup:     make(chan struct{}),
	}
}

// Seen implements Deduper. Empty ids are never considered duplicates.
func (c *TTLCache) Seen(ctx context.Context, id string) bool {
	if id == "" {
		return false
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	at, ok := c.entries[id]
	if ok && now.Sub(at) < c.ttl {
		return true
	}

	// An expired id starts a fresh window and moves to the back of the queue.
	c.entries[id] = now
	c.order = append(c.order, stamp{id: id, at: now})
	for len(c.entries) > c.maxEntries {
		c.evictOldest()
	}
	return false
}

// evictOldest drops the front of the insertion queue. Caller holds mu.
func (c *TTLCache) evictOldest() {
	for len(c.order) > 0 {
		st := c.order[0]
		c.order = c.order[1:]
		if at, ok := c.entries[st.id]; ok && at.Equal(st.at) {
			delete(c.entries, st.id)
			return
		}
	}
}

// Len returns the number of remembered ids.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cleanup periodically removes expired ids to bound memory between bursts.
func (c *TTLCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *TTLCache) removeExpired() {
	cutoff := c.now().Add(-c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.order[:0]
	for _, st := range c.order {
		at, ok := c.entries[st.id]
		if !ok || !at.Equal(st.at) {
			continue
		}
		if at.Before(cutoff) {
			delete(c.entries, st.id)
			continue
		}
		kept = append(kept, st)
	}
	c.order = kept
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (c *TTLCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}
