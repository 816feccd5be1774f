package license

import (
	"sync"
	"time"
)

// resultCache holds the last validation result. Owned state on the manager
// rather than package-level globals, so tests run in isolation without
// process-wide reset hooks.
type resultCache struct {
	mu        sync.RWMutex
	result    *Result
	cachedAt  time.Time
	hitCount  int64
	missCount int64
}

// get returns the cached result if it is younger than maxAge.
func (c *resultCache) get(now time.Time, maxAge time.Duration) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.result == nil || now.Sub(c.cachedAt) > maxAge {
		c.missCount++
		return nil, false
	}
	c.hitCount++
	cp := *c.result
	return &cp, true
}

// peek returns the cached result regardless of age, without touching the
// hit/miss counters. Permission checks use this.
func (c *resultCache) peek() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.result == nil {
		return nil
	}
	cp := *c.result
	return &cp
}

func (c *resultCache) set(result Result, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = &result
	c.cachedAt = now
}

func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.result = nil
	c.cachedAt = time.Time{}
}

// stats returns hit/miss counters and the age of the cached entry.
func (c *resultCache) stats(now time.Time) (hits, misses int64, age time.Duration, cached bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.result != nil {
		cached = true
		age = now.Sub(c.cachedAt)
	}
	return c.hitCount, c.missCount, age, cached
}
