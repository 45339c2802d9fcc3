package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// CacheEntry is a stored value and the time it was stored
type CacheEntry struct {
	Key      string
	Value    any
	StoredAt time.Time
}

// CacheStats is a point-in-time view of cache counters
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// TTLCache is a key/value store where every entry expires TTL after it was stored.
// Expiry is evaluated on read; there is no background eviction.
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
	ttl     time.Duration
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewTTLCache creates an empty cache with the given TTL
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Set stores value under key, replacing any previous entry
func (c *TTLCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = CacheEntry{
		Key:      key,
		Value:    value,
		StoredAt: c.now(),
	}
}

// Get returns the value for key if it exists and is not older than the TTL.
// Expired entries are removed and reported as a miss.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses.Inc()
		return nil, false
	}

	if c.now().Sub(entry.StoredAt) > c.ttl {
		delete(c.entries, key)
		c.misses.Inc()
		return nil, false
	}

	c.hits.Inc()
	return entry.Value, true
}

// Has mirrors Get without returning the value
func (c *TTLCache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Clear drops every entry
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]CacheEntry)
}

// Len returns the number of stored entries, including expired ones not yet read
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live
func (c *TTLCache) TTL() time.Duration {
	return c.ttl
}

// Stats returns hit and miss counters
func (c *TTLCache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.Len(),
	}
}

// getTyped reads key and asserts the stored type
func getTyped[T any](c *TTLCache, key string) (T, bool) {
	var zero T
	value, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// BuildCacheKey joins a query name and every parameter that affects its result
func BuildCacheKey(name string, parts ...any) string {
	var b strings.Builder
	b.WriteString(name)
	for _, part := range parts {
		b.WriteByte(':')
		fmt.Fprint(&b, part)
	}
	return b.String()
}
