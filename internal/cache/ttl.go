// Package cache provides the in-memory TTL cache used for POI fetches and
// enrichment lookups, plus a sqlite-backed store for completed analyses.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// TTLCache is a small thread-safe in-memory cache with per-entry TTL and a
// size cap. When full it drops expired entries first, then the entries
// closest to expiry.
type TTLCache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	defaultTTL time.Duration
	maxSize    int
}

// NewTTLCache creates a cache with the given default TTL and size cap.
func NewTTLCache(defaultTTL time.Duration, maxSize int) *TTLCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &TTLCache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
	}
}

// Get returns the cached value, or nil and false when missing or expired.
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores a value. A non-positive ttl uses the cache default.
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
}

// Delete removes an entry, reporting whether it existed.
func (c *TTLCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		return true
	}
	return false
}

// Clear drops everything.
func (c *TTLCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len returns the current entry count, expired entries included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictLocked drops expired entries, then trims to 80% of the cap by
// earliest expiry. Caller holds the write lock.
func (c *TTLCache) evictLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}

	if len(c.entries) < c.maxSize {
		return
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].expiresAt.Before(c.entries[keys[j]].expiresAt)
	})

	target := int(float64(c.maxSize) * 0.8)
	for _, k := range keys[:len(c.entries)-target] {
		delete(c.entries, k)
	}
}

// MakeKey hashes the arguments into a stable cache key.
func MakeKey(args ...interface{}) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	sum := md5.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}
