// Package cache provides a bounded LRU cache for embedding vectors.
//
// Encoding is by far the most expensive step of a search request, and the
// same image or term is often encoded repeatedly (variants share substrings,
// users iterate on the same image). The cache memoizes encode calls keyed by
// content hash (images) or case-folded text, evicting least-recently-used
// entries on overflow.
//
// The cache is owned by the pipeline instance and injected where needed;
// there is no process-global state. All operations are mutex-guarded so one
// cache may be shared across concurrent requests.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/tradarlab/tradar/internal/vector"
)

// DefaultCapacity is the default number of cached vectors.
const DefaultCapacity = 128

// Cache is a bounded LRU vector cache.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]vector.Vector
	order    []string // least-recently-used first
	capacity int
}

// New creates a cache with the given capacity. Non-positive capacities use
// DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[string]vector.Vector),
		capacity: capacity,
	}
}

// ImageKey derives a cache key from raw image bytes.
func ImageKey(data []byte) string {
	sum := sha256.Sum256(data)
	return "img:" + hex.EncodeToString(sum[:])
}

// TextKey derives a cache key from a text term.
func TextKey(text string) string {
	return "txt:" + strings.ToLower(strings.TrimSpace(text))
}

// GetOrCompute returns the cached vector for key, calling compute on a miss.
// The returned vector is always a defensive copy; callers may mutate it
// without corrupting the cache. compute errors are returned verbatim and
// nothing is cached.
func (c *Cache) GetOrCompute(key string, compute func() (vector.Vector, error)) (vector.Vector, error) {
	c.mu.Lock()
	if v, ok := c.entries[key]; ok {
		c.touch(key)
		out := clone(v)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	// Compute outside the lock: encode calls can be slow and must not block
	// unrelated cache hits.
	v, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		if len(c.entries) >= c.capacity {
			c.evictOldest()
		}
		c.entries[key] = clone(v)
		c.order = append(c.order, key)
	} else {
		c.touch(key)
	}
	return clone(v), nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// touch moves key to the most-recently-used position. Caller holds the lock.
func (c *Cache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			return
		}
	}
}

// evictOldest drops the least-recently-used entry. Caller holds the lock.
func (c *Cache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func clone(v vector.Vector) vector.Vector {
	out := make(vector.Vector, len(v))
	copy(out, v)
	return out
}
