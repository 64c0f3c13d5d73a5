package cache

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestMap_GetPut(t *testing.T) {
	m := NewMap[string, int]()

	if _, ok := m.Get("missing"); ok {
		t.Error("Get returned ok for missing key")
	}

	m.Put("a", 1)
	m.Put("a", 2)

	v, ok := m.Get("a")
	if !ok || v != 2 {
		t.Errorf("Get(a) = %d, %v; want 2, true", v, ok)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
	if !m.Contains("a") || m.Contains("b") {
		t.Error("Contains mismatch")
	}
}

func TestMap_Keys(t *testing.T) {
	m := NewMap[string, int]()
	m.Put("b", 2)
	m.Put("a", 1)

	keys := m.Keys()
	sort.Strings(keys)
	if fmt.Sprint(keys) != "[a b]" {
		t.Errorf("Keys = %v", keys)
	}
}

func TestMap_Stats(t *testing.T) {
	m := NewMap[string, int]()
	m.Put("a", 1)
	m.Get("a")
	m.Get("b")

	// Contains is not a lookup.
	m.Contains("a")

	stats := m.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Hits = %d, Misses = %d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("HitRate = %v, want 0.5", stats.HitRate)
	}
	if stats.ItemCount != 1 || stats.Capacity != 0 {
		t.Errorf("ItemCount = %d, Capacity = %d", stats.ItemCount, stats.Capacity)
	}
}

func TestMap_ConcurrentDuplicatePuts(t *testing.T) {
	m := NewMap[string, int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, ok := m.Get("CODE"); !ok {
				m.Put("CODE", i)
			}
		}(i)
	}
	wg.Wait()

	if m.Len() != 1 {
		t.Errorf("Len = %d, want 1", m.Len())
	}
}
