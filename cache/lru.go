package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLRUCapacity is used when no capacity is given.
const DefaultLRUCapacity = 1000

// LRU is a fixed-capacity key/value store with least-recently-used eviction.
// It is the in-process fallback behind the remote cache facade.
//
// Contract:
// - Capacity: never exceeded; inserting into a full cache evicts exactly the
//   least recently accessed entry first.
// - Recency: Get and Set refresh an entry's recency; Has does not.
// - TTL: none. Expiry is a property of the remote facade, not this cache.
// - Concurrency: safe for concurrent use.
type LRU[V any] struct {
	inner *lru.Cache[string, V]
}

// NewLRU creates an LRU with the given capacity. Capacity <= 0 uses
// DefaultLRUCapacity.
func NewLRU[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = DefaultLRUCapacity
	}
	// lru.New only fails on non-positive capacity, which is ruled out above.
	inner, _ := lru.New[string, V](capacity)
	return &LRU[V]{inner: inner}
}

// Get returns the value for key and refreshes its recency.
func (c *LRU[V]) Get(key string) (V, bool) {
	return c.inner.Get(key)
}

// Set stores value under key, refreshing recency. On a new key at capacity,
// the least recently used entry is evicted first.
func (c *LRU[V]) Set(key string, value V) {
	c.inner.Add(key, value)
}

// Has reports whether key is present without refreshing recency.
func (c *LRU[V]) Has(key string) bool {
	return c.inner.Contains(key)
}

// Delete removes key, reporting whether it was present.
func (c *LRU[V]) Delete(key string) bool {
	return c.inner.Remove(key)
}

// Clear removes all entries.
func (c *LRU[V]) Clear() {
	c.inner.Purge()
}

// Len returns the current number of entries.
func (c *LRU[V]) Len() int {
	return c.inner.Len()
}
