package cache

import (
	"sync"
	"time"
)

// Map is an unbounded Store guarded by a single mutex. Entries live until the
// Map is discarded.
type Map[K comparable, V any] struct {
	mu    sync.Mutex
	items map[K]V
	stats Stats
}

var _ Store[string, []byte] = (*Map[string, []byte])(nil)

// NewMap creates an empty map store.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{items: make(map[K]V)}
}

// Get retrieves a value from the map.
func (m *Map[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.LastAccess = time.Now()
	v, ok := m.items[key]
	if !ok {
		m.stats.Misses++
		return v, false
	}

	m.stats.Hits++
	return v, true
}

// Put stores a value in the map. A second Put for the same key replaces the
// first.
func (m *Map[K, V]) Put(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}

// Contains reports whether key is present without counting a hit or miss.
func (m *Map[K, V]) Contains(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.items[key]
	return ok
}

// Keys returns all keys in no particular order.
func (m *Map[K, V]) Keys() []K {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]K, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}

// Stats returns map statistics.
func (m *Map[K, V]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.stats
	stats.ItemCount = int64(len(m.items))
	stats.computeHitRate()
	return stats
}
