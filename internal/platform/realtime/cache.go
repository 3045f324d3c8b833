package realtime

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	mu        sync.Mutex
	value     interface{}
	stale     bool
	fetchedAt time.Time
}

// QueryCache holds query results keyed by cache key. Invalidation only ever
// marks entries stale so consumers refetch; changed rows are never merged
// into cached values.
type QueryCache struct {
	entries *lru.Cache[string, *cacheEntry]
}

// NewQueryCache creates a cache bounded to size entries.
func NewQueryCache(size int) (*QueryCache, error) {
	entries, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &QueryCache{entries: entries}, nil
}

// Set stores a fresh result under key.
func (c *QueryCache) Set(key string, value interface{}) {
	c.entries.Add(key, &cacheEntry{value: value, fetchedAt: time.Now()})
}

// Get returns the cached value. stale=true means the value should be
// refetched but is still usable for display in the meantime.
func (c *QueryCache) Get(key string) (value interface{}, ok, stale bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, false, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value, true, e.stale
}

// MarkStale flags every listed key for refetch. Missing keys are ignored.
func (c *QueryCache) MarkStale(keys ...string) {
	for _, key := range keys {
		if e, ok := c.entries.Peek(key); ok {
			e.mu.Lock()
			e.stale = true
			e.mu.Unlock()
		}
	}
}

// Remove evicts a key outright.
func (c *QueryCache) Remove(key string) {
	c.entries.Remove(key)
}

// Len returns the number of cached entries.
func (c *QueryCache) Len() int {
	return c.entries.Len()
}
