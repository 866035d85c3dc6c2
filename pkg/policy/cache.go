package policy

import (
	"context"
	"sync"
)

// CacheKey identifies a cached policy document: path plus the content
// hash of the bytes it was loaded from. A changed file never hits a
// stale cache entry — it simply misses and is loaded fresh under a
// new key.
type CacheKey struct {
	Path        string
	ContentHash string
}

// Cache stores raw, schema-validated policy document bytes keyed by
// CacheKey. Bytes, not compiled Policies, are what's cached: a
// compiled Policy holds regexes and CEL programs that can't cross a
// process boundary, so persistent backends store the document and the
// Loader recompiles on every Get. Entries are immutable once written —
// Put is a no-op against an existing key, since the key already pins
// the content.
type Cache interface {
	Get(ctx context.Context, key CacheKey) (raw []byte, ok bool, err error)
	Put(ctx context.Context, key CacheKey, raw []byte) error
}

// MemoryCache is an in-process Cache. It is the default when neither
// INVARIANT_POLICY_CACHE_DSN nor INVARIANT_REDIS_URL is configured.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[CacheKey][]byte
}

// NewMemoryCache returns an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[CacheKey][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, key CacheKey) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.entries[key]
	return raw, ok, nil
}

func (c *MemoryCache) Put(_ context.Context, key CacheKey, raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return nil
	}
	c.entries[key] = raw
	return nil
}
