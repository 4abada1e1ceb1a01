// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package cache

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGenerateKey(t *testing.T) {
	t.Parallel()

	a := GenerateKey("insights", map[string]interface{}{"persona": 1, "limit": 10})
	b := GenerateKey("insights", map[string]interface{}{"limit": 10, "persona": 1})
	c := GenerateKey("insights", map[string]interface{}{"persona": 2, "limit": 10})

	if a != b {
		t.Errorf("parameter order should not change the key: %q vs %q", a, b)
	}
	if a == c {
		t.Error("different parameters should produce different keys")
	}
	if !strings.HasPrefix(a, "insights:") {
		t.Errorf("key %q should start with the prefix", a)
	}
	// prefix + ':' + 32 hex chars
	if len(a) != len("insights:")+32 {
		t.Errorf("unexpected key length %d for %q", len(a), a)
	}
}

func TestGenerateKey_Unencodable(t *testing.T) {
	t.Parallel()

	key := GenerateKey("fn", make(chan int))
	if !strings.HasPrefix(key, "fn:") {
		t.Errorf("fallback key %q should keep the prefix", key)
	}
}

func TestGetOrCompute(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 10)

	calls := 0
	compute := func() (interface{}, error) {
		calls++
		return "computed", nil
	}

	v, hit, err := s.GetOrCompute("k", time.Minute, compute)
	if err != nil || hit || v != "computed" {
		t.Fatalf("first call = (%v, %v, %v), want (computed, false, nil)", v, hit, err)
	}

	v, hit, err = s.GetOrCompute("k", time.Minute, compute)
	if err != nil || !hit || v != "computed" {
		t.Fatalf("second call = (%v, %v, %v), want (computed, true, nil)", v, hit, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 10)

	boom := errors.New("upstream unavailable")
	_, _, err := s.GetOrCompute("k", time.Minute, func() (interface{}, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if s.Len() != 0 {
		t.Error("failed computation must not be cached")
	}

	v, hit, err := s.GetOrCompute("k", time.Minute, func() (interface{}, error) {
		return 42, nil
	})
	if err != nil || hit || v != 42 {
		t.Errorf("retry = (%v, %v, %v), want (42, false, nil)", v, hit, err)
	}
}

func TestGetOrCompute_DefaultTTL(t *testing.T) {
	t.Parallel()
	s, clock := newTestStore(t, 10)

	_, _, _ = s.GetOrCompute("k", 0, func() (interface{}, error) { return 1, nil })
	clock.Advance(59 * time.Second)
	if _, ok := s.Get("k"); !ok {
		t.Error("zero ttl should fall back to the default TTL")
	}
}

func TestGetOrCompute_CollapsesConcurrentMisses(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t, 10)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (interface{}, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 5
	var started, done sync.WaitGroup
	results := make([]interface{}, callers)
	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			v, _, _ := s.GetOrCompute("k", time.Minute, compute)
			results[i] = v
		}(i)
	}
	started.Wait()
	// Give the callers a moment to join the in-flight call before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	// Late arrivals may hit the cache instead of joining the flight, but the
	// compute function itself must never run concurrently for one key.
	if got := calls.Load(); got != 1 {
		t.Errorf("compute called %d times, want 1", got)
	}
	for i, v := range results {
		if v != "shared" {
			t.Errorf("caller %d got %v, want shared", i, v)
		}
	}
}
