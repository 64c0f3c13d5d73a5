package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a Store bounded by total entry size with least-recently-used
// eviction.
type LRU[K comparable, V any] struct {
	capacity int64 // Maximum size in bytes
	size     int64 // Current size in bytes
	sizeOf   func(V) int64

	// LRU implementation
	items    map[K]*list.Element
	eviction *list.List

	mu    sync.Mutex
	stats Stats
}

var _ Store[string, []byte] = (*LRU[string, []byte])(nil)

// lruEntry represents an entry in the LRU
type lruEntry[K comparable, V any] struct {
	key        K
	value      V
	size       int64
	timestamp  time.Time
	lastAccess time.Time
	hits       int64
}

// NewLRU creates an LRU store holding at most capacity bytes, measuring each
// value with sizeOf.
func NewLRU[K comparable, V any](capacity int64, sizeOf func(V) int64) *LRU[K, V] {
	return &LRU[K, V]{
		capacity: capacity,
		sizeOf:   sizeOf,
		items:    make(map[K]*list.Element),
		eviction: list.New(),
		stats: Stats{
			Capacity: capacity,
		},
	}
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	c.stats.LastAccess = now

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}

	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*lruEntry[K, V])
	entry.hits++
	entry.lastAccess = now

	c.stats.Hits++
	return entry.value, true
}

// Put stores a value, evicting least recently used entries to make room.
// Values larger than the whole capacity are not stored.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	valueSize := c.sizeOf(value)
	now := time.Now()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}

	if valueSize > c.capacity {
		c.stats.Rejected++
		return
	}

	for c.size+valueSize > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	entry := &lruEntry[K, V]{
		key:        key,
		value:      value,
		size:       valueSize,
		timestamp:  now,
		lastAccess: now,
	}

	c.items[key] = c.eviction.PushFront(entry)
	c.size += valueSize
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// Delete removes an entry.
func (c *LRU[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries.
func (c *LRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element)
	c.eviction.Init()
	c.size = 0
}

// Size returns the current total size in bytes.
func (c *LRU[K, V]) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.size
}

// Contains checks if a key exists without updating recency.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Keys returns all keys, most recently used first.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for elem := c.eviction.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*lruEntry[K, V]).key)
	}
	return keys
}

// Oldest returns metadata for up to n least recently used entries, least
// recent first.
func (c *LRU[K, V]) Oldest(n int) []Metadata[K] {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Metadata[K], 0, n)
	for elem := c.eviction.Back(); elem != nil && len(entries) < n; elem = elem.Prev() {
		entry := elem.Value.(*lruEntry[K, V])
		entries = append(entries, Metadata[K]{
			Key:        entry.key,
			Size:       entry.size,
			Timestamp:  entry.timestamp,
			LastAccess: entry.lastAccess,
			Hits:       entry.hits,
		})
	}
	return entries
}

// Resize changes the capacity, evicting entries if needed.
func (c *LRU[K, V]) Resize(capacity int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.capacity = capacity
	c.stats.Capacity = capacity

	for c.size > c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}
}

// Prune removes entries stored longer ago than maxAge and returns how many
// were removed.
func (c *LRU[K, V]) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0

	elem := c.eviction.Back()
	for elem != nil {
		prev := elem.Prev()
		if elem.Value.(*lruEntry[K, V]).timestamp.Before(cutoff) {
			c.removeElement(elem)
			pruned++
		}
		elem = prev
	}

	return pruned
}

// Stats returns LRU statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := c.stats
	stats.Size = c.size
	stats.ItemCount = int64(len(c.items))
	stats.computeHitRate()
	return stats
}

// evictOldest removes the least recently used entry (must be called with lock held).
func (c *LRU[K, V]) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}
}

// removeElement removes an element (must be called with lock held).
func (c *LRU[K, V]) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*lruEntry[K, V])
	delete(c.items, entry.key)
	c.size -= entry.size
}
