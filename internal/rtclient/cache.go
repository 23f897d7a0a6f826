// internal/rtclient/cache.go
package rtclient

import (
	"strings"
	"sync"
	"time"
)

// QueryCache holds fetched REST query results keyed by resource path, e.g.
// "service-orders" or "service-orders/o1". A push invalidates keys; it never
// writes data, so the next read misses and refetches.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value    any
	cachedAt time.Time
}

// NewQueryCache creates an empty cache.
func NewQueryCache() *QueryCache {
	return &QueryCache{entries: make(map[string]cacheEntry)}
}

// Set stores a value under a key.
func (c *QueryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, cachedAt: time.Now()}
}

// Get returns the cached value for a key.
func (c *QueryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops the given keys.
func (c *QueryCache) Invalidate(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
}

// InvalidatePrefix drops every key under a resource prefix, so an order
// signal clears both the list and any cached detail queries.
func (c *QueryCache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key == prefix || strings.HasPrefix(key, prefix+"/") {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of cached entries.
func (c *QueryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
