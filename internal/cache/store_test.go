// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/perfcore/internal/metrics"
)

func newTestStore(t *testing.T, maxItems int) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	return New(Config{MaxItems: maxItems, DefaultTTL: time.Minute, Clock: clock, Name: t.Name()}), clock
}

func TestStoreBasicOperations(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 10)

	s.Set("key1", "value1")
	value, ok := s.Get("key1")
	if !ok {
		t.Fatal("expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("expected value1, got %v", value)
	}

	if _, ok := s.Get("key2"); ok {
		t.Error("expected key2 to not exist")
	}
}

func TestStoreDefaults(t *testing.T) {
	t.Parallel()

	s := New(Config{})
	if s.maxItems != DefaultMaxItems {
		t.Errorf("maxItems = %d, want %d", s.maxItems, DefaultMaxItems)
	}
	if s.defaultTTL != DefaultTTL {
		t.Errorf("defaultTTL = %v, want %v", s.defaultTTL, DefaultTTL)
	}
	if s.name != DefaultName {
		t.Errorf("name = %q, want %q", s.name, DefaultName)
	}
}

func TestStoreTTL(t *testing.T) {
	t.Parallel()

	t.Run("zero ttl expires immediately", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestStore(t, 10)

		s.SetWithTTL("k", "v", 0)
		if _, ok := s.Get("k"); ok {
			t.Error("entry with zero TTL should not be readable")
		}
		if got := s.Stats().Expirations; got != 1 {
			t.Errorf("Expirations = %d, want 1", got)
		}
	})

	t.Run("expires exactly at deadline", func(t *testing.T) {
		t.Parallel()
		s, clock := newTestStore(t, 10)

		s.SetWithTTL("k", "v", 10*time.Second)
		clock.Advance(9 * time.Second)
		if _, ok := s.Get("k"); !ok {
			t.Fatal("entry should be live before its TTL elapses")
		}
		clock.Advance(time.Second)
		if _, ok := s.Get("k"); ok {
			t.Error("entry should be expired once now reaches expiresAt")
		}
		if s.Len() != 0 {
			t.Errorf("expired entry should be removed on read, Len = %d", s.Len())
		}
	})

	t.Run("set uses default ttl", func(t *testing.T) {
		t.Parallel()
		s, clock := newTestStore(t, 10)

		s.Set("k", "v")
		clock.Advance(59 * time.Second)
		if _, ok := s.Get("k"); !ok {
			t.Fatal("entry should survive until the default TTL")
		}
		clock.Advance(time.Second)
		if _, ok := s.Get("k"); ok {
			t.Error("entry should expire after the default TTL")
		}
	})

	t.Run("overwrite refreshes ttl", func(t *testing.T) {
		t.Parallel()
		s, clock := newTestStore(t, 10)

		s.SetWithTTL("k", "v1", 10*time.Second)
		clock.Advance(8 * time.Second)
		s.SetWithTTL("k", "v2", 10*time.Second)
		clock.Advance(8 * time.Second)

		value, ok := s.Get("k")
		if !ok || value != "v2" {
			t.Errorf("Get = (%v, %v), want (v2, true)", value, ok)
		}
	})
}

func TestStoreLRUEviction(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(t, 3)

	s.Set("a", 1)
	clock.Advance(time.Millisecond)
	s.Set("b", 2)
	clock.Advance(time.Millisecond)
	s.Set("c", 3)
	clock.Advance(time.Millisecond)

	// Touch a so b becomes the least recently used
	if _, ok := s.Get("a"); !ok {
		t.Fatal("expected a to exist")
	}
	s.Set("d", 4)

	if _, ok := s.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, key := range []string{"a", "c", "d"} {
		if _, ok := s.Get(key); !ok {
			t.Errorf("%s should still be cached", key)
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len = %d, want 3", s.Len())
	}
	if got := s.Stats().Evictions; got != 1 {
		t.Errorf("Evictions = %d, want 1", got)
	}
}

func TestStoreOverwriteDoesNotEvict(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 2)

	s.Set("a", 1)
	s.Set("b", 2)
	s.Set("a", 10)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if _, ok := s.Get("b"); !ok {
		t.Error("updating an existing key must not evict another")
	}
	if got := s.Stats().Evictions; got != 0 {
		t.Errorf("Evictions = %d, want 0", got)
	}
}

func TestStoreNeverExceedsCapacity(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 5)

	for i := 0; i < 50; i++ {
		s.Set(fmt.Sprintf("key-%d", i), i)
		if s.Len() > 5 {
			t.Fatalf("Len = %d after %d inserts, exceeds capacity", s.Len(), i+1)
		}
	}

	keys := s.Keys()
	want := []string{"key-49", "key-48", "key-47", "key-46", "key-45"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("Keys() = %v, want %v", keys, want)
	}
}

func TestStoreHitRate(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 10)

	if got := s.Stats().HitRate; got != 0 {
		t.Errorf("HitRate with no requests = %v, want 0", got)
	}

	s.Set("k", "v")
	for i := 0; i < 3; i++ {
		s.Get("k")
	}
	s.Get("missing")

	stats := s.Stats()
	if stats.Hits != 3 || stats.Misses != 1 {
		t.Errorf("Hits/Misses = %d/%d, want 3/1", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.75 {
		t.Errorf("HitRate = %v, want 0.75", stats.HitRate)
	}
	if stats.Sets != 1 {
		t.Errorf("Sets = %d, want 1", stats.Sets)
	}

	if got := testutil.ToFloat64(metrics.CacheHits.WithLabelValues(t.Name())); got != 3 {
		t.Errorf("hits metric = %v, want 3", got)
	}
}

func TestStoreInvalidate(t *testing.T) {
	t.Parallel()

	t.Run("pattern", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestStore(t, 10)
		s.Set("persona:1", 1)
		s.Set("persona:2", 2)
		s.Set("campaign:1", 3)

		if removed := s.Invalidate("persona"); removed != 2 {
			t.Errorf("Invalidate(persona) = %d, want 2", removed)
		}
		if _, ok := s.Get("campaign:1"); !ok {
			t.Error("non-matching key should survive")
		}
	})

	t.Run("clear all", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestStore(t, 10)
		s.Set("a", 1)
		s.Set("b", 2)

		if removed := s.Invalidate(""); removed != 2 {
			t.Errorf("Invalidate(\"\") = %d, want 2", removed)
		}
		if s.Len() != 0 {
			t.Errorf("Len = %d, want 0", s.Len())
		}
		// the list must still be usable after a clear
		s.Set("c", 3)
		if _, ok := s.Get("c"); !ok {
			t.Error("store should accept writes after clear")
		}
	})

	t.Run("empty store is a no-op", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestStore(t, 10)

		if removed := s.Invalidate(""); removed != 0 {
			t.Errorf("Invalidate on empty store = %d, want 0", removed)
		}
		if removed := s.Invalidate("x"); removed != 0 {
			t.Errorf("Invalidate(x) on empty store = %d, want 0", removed)
		}
	})
}

func TestStoreCleanupExpired(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(t, 10)

	s.SetWithTTL("short", 1, time.Second)
	s.SetWithTTL("long", 2, time.Hour)
	clock.Advance(2 * time.Second)

	if removed := s.CleanupExpired(); removed != 1 {
		t.Errorf("CleanupExpired = %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
	if got := s.Stats().Expirations; got != 1 {
		t.Errorf("Expirations = %d, want 1", got)
	}
}

func TestStoreKeysSkipsExpired(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(t, 10)

	s.SetWithTTL("gone", 1, time.Second)
	s.SetWithTTL("kept", 2, time.Hour)
	clock.Advance(time.Second)

	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "kept" {
		t.Errorf("Keys() = %v, want [kept]", keys)
	}
}

func TestStoreApproxMemory(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 10)

	// "abcd" (6 bytes) + 12345 (5) + {"a":1} (7); channels cannot be encoded.
	s.Set("str", "abcd")
	s.Set("num", 12345)
	s.Set("ch", make(chan int))
	s.Set("map", map[string]interface{}{"a": 1})

	if got := s.Stats().ApproxMemoryBytes; got != 18 {
		t.Errorf("ApproxMemoryBytes = %d, want 18", got)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 100)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k-%d", (g*31+i)%150)
				if i%3 == 0 {
					s.Set(key, i)
				} else {
					s.Get(key)
				}
				if i%100 == 0 {
					s.Invalidate("k-1")
				}
			}
		}(g)
	}
	wg.Wait()

	if s.Len() > 100 {
		t.Errorf("Len = %d, exceeds capacity", s.Len())
	}
	stats := s.Stats()
	if stats.Hits+stats.Misses == 0 {
		t.Error("expected recorded lookups")
	}
}
