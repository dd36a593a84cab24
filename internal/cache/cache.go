// Package cache implements the bounded TTL cache providers consult before
// going to single-flight/rate-limiter/HTTP. Built on
// github.com/hashicorp/golang-lru/v2/expirable, which already provides
// capacity-bounded LRU eviction plus per-entry TTL — exactly the contract
// this component needs, so there is nothing to hand-roll here.
package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a bounded map from a string fingerprint to a shared immutable
// value of type V. Safe for concurrent readers and writers.
type Cache[V any] struct {
	inner *lru.LRU[string, V]
}

// New constructs a Cache holding at most capacity entries, each expiring ttl
// after insertion.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{inner: lru.NewLRU[string, V](capacity, nil, ttl)}
}

// Get returns the stored value for k, or (zero, false) if absent or expired.
func (c *Cache[V]) Get(k string) (V, bool) {
	return c.inner.Get(k)
}

// Put inserts or replaces the value stored at k, resetting its TTL.
func (c *Cache[V]) Put(k string, v V) {
	c.inner.Add(k, v)
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	return c.inner.Len()
}
