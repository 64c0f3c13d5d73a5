package cache

import "time"

// Store is a concurrent key/value store. Each call holds the store's lock only
// for its own duration, so callers never block on one another's slow work.
type Store[K comparable, V any] interface {
	// Get returns the value stored for key.
	Get(key K) (V, bool)

	// Put stores value under key, replacing any previous value.
	Put(key K, value V)

	// Len returns the number of stored entries.
	Len() int
}

// Stats holds store performance metrics.
type Stats struct {
	// Configuration
	Capacity int64 // Maximum size in bytes, 0 when unbounded

	// Current state
	Size      int64 // Current size in bytes, 0 when sizes are not tracked
	ItemCount int64 // Number of items

	// Performance metrics
	Hits      int64   // Number of hits
	Misses    int64   // Number of misses
	Evictions int64   // Number of evictions
	Rejected  int64   // Items refused because they exceed the capacity
	HitRate   float64 // hits / (hits + misses)

	// Timing
	LastAccess time.Time // Last lookup time
	LastEvict  time.Time // Last eviction time
}

func (s *Stats) computeHitRate() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Metadata describes a stored entry.
type Metadata[K comparable] struct {
	Key        K
	Size       int64
	Timestamp  time.Time // When the entry was stored
	LastAccess time.Time
	Hits       int64
}
