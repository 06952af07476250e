package ingest

import (
	"sync"
	"time"
)

// seenCache suppresses redelivered trigger events within a TTL. Brokers
// with at-least-once delivery may hand the same event to us twice.
type seenCache struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func newSeenCache() *seenCache {
	return &seenCache{items: make(map[string]time.Time)}
}

func (c *seenCache) Seen(key string, now time.Time, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts, ok := c.items[key]; ok {
		if now.Sub(ts) <= ttl {
			return true
		}
	}
	c.items[key] = now
	if len(c.items) > 10000 {
		c.compact(now, ttl)
	}
	return false
}

func (c *seenCache) compact(now time.Time, ttl time.Duration) {
	for k, ts := range c.items {
		if now.Sub(ts) > ttl {
			delete(c.items, k)
		}
	}
}
