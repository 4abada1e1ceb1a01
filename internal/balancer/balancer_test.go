// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package balancer

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type fakeSink struct {
	mu    sync.Mutex
	count int
}

func (s *fakeSink) Log(error, map[string]interface{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return "0badf00d"
}

func newTestBalancer(cfg Config) *Balancer {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewFakeClock()
	}
	return New(cfg)
}

func TestSelectInstance_NotFound(t *testing.T) {
	t.Parallel()

	b := newTestBalancer(Config{})
	if _, ok := b.SelectInstance("missing", RoundRobin); ok {
		t.Error("SelectInstance() ok = true for unknown service")
	}

	b.Register("svc", "a", "http://a", 1)
	b.SetStatus("svc", "a", StatusUnhealthy)
	if _, ok := b.SelectInstance("svc", RoundRobin); ok {
		t.Error("SelectInstance() ok = true with no healthy instances")
	}
}

func TestSelectInstance_RoundRobin(t *testing.T) {
	t.Parallel()

	b := newTestBalancer(Config{})
	for _, id := range []string{"a", "b", "c"} {
		b.Register("svc", id, "http://"+id, 1)
	}

	var got []string
	for i := 0; i < 6; i++ {
		inst, ok := b.SelectInstance("svc", RoundRobin)
		if !ok {
			t.Fatal("SelectInstance() ok = false")
		}
		got = append(got, inst.ID)
	}
	want := []string{"a", "b", "c", "a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", got, want)
		}
	}

	if st := b.Stats(); st.Services["svc"].RequestCount != 6 {
		t.Errorf("RequestCount = %d, want 6", st.Services["svc"].RequestCount)
	}
}

func TestSelectInstance_RoundRobinConcurrent(t *testing.T) {
	t.Parallel()

	b := newTestBalancer(Config{})
	for _, id := range []string{"a", "b", "c", "d"} {
		b.Register("svc", id, "", 1)
	}

	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				inst, _ := b.SelectInstance("svc", RoundRobin)
				mu.Lock()
				counts[inst.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for id, n := range counts {
		if n != 200 {
			t.Errorf("instance %s selected %d times, want 200", id, n)
		}
	}
}

func TestSelectInstance_Weighted(t *testing.T) {
	t.Parallel()

	t.Run("deterministic draw", func(t *testing.T) {
		t.Parallel()
		var next atomic.Int64
		b := newTestBalancer(Config{Random: func(n int) int {
			return int(next.Add(1)-1) % n
		}})
		b.Register("svc", "light", "", 1)
		b.Register("svc", "heavy", "", 3)

		counts := map[string]int{}
		for i := 0; i < 400; i++ {
			inst, _ := b.SelectInstance("svc", Weighted)
			counts[inst.ID]++
		}
		if counts["light"] != 100 || counts["heavy"] != 300 {
			t.Errorf("counts = %v, want light=100 heavy=300", counts)
		}
	})

	t.Run("huge weights are clamped", func(t *testing.T) {
		t.Parallel()
		b := newTestBalancer(Config{})
		b.Register("svc", "a", "", math.MaxInt)
		b.Register("svc", "b", "", math.MaxInt)
		b.Register("svc", "c", "", -5)

		for i := 0; i < 100; i++ {
			if _, ok := b.SelectInstance("svc", Weighted); !ok {
				t.Fatal("SelectInstance() found no instance")
			}
		}
		weights := map[string]int{}
		for _, svc := range b.Stats().Services {
			for _, in := range svc.Instances {
				weights[in.ID] = in.Weight
			}
		}
		if weights["a"] != MaxWeight || weights["b"] != MaxWeight || weights["c"] != 1 {
			t.Errorf("weights = %v, want a,b=%d c=1", weights, MaxWeight)
		}
	})

	t.Run("distribution", func(t *testing.T) {
		t.Parallel()
		b := newTestBalancer(Config{})
		b.Register("svc", "light", "", 1)
		b.Register("svc", "heavy", "", 3)

		counts := map[string]int{}
		for i := 0; i < 40000; i++ {
			inst, _ := b.SelectInstance("svc", Weighted)
			counts[inst.ID]++
		}
		ratio := float64(counts["heavy"]) / float64(counts["light"])
		if ratio < 2.7 || ratio > 3.3 {
			t.Errorf("heavy/light ratio = %.2f, want about 3", ratio)
		}
	})
}

func TestSelectInstance_LeastConnections(t *testing.T) {
	t.Parallel()

	b := newTestBalancer(Config{})
	b.Register("svc", "a", "", 1)
	b.Register("svc", "b", "", 1)
	b.Register("svc", "c", "", 1)

	if inst, _ := b.SelectInstance("svc", LeastConnections); inst.ID != "a" {
		t.Errorf("tie selected %s, want a", inst.ID)
	}

	b.mu.RLock()
	b.services["svc"].instances[0].conns.Store(5)
	b.services["svc"].instances[1].conns.Store(2)
	b.services["svc"].instances[2].conns.Store(2)
	b.mu.RUnlock()

	inst, _ := b.SelectInstance("svc", LeastConnections)
	if inst.ID != "b" || inst.Connections != 2 {
		t.Errorf("selected %s (%d conns), want b", inst.ID, inst.Connections)
	}
}

func TestSelectInstance_UnknownAndCustomAlgorithm(t *testing.T) {
	t.Parallel()

	b := newTestBalancer(Config{})
	b.Register("svc", "a", "", 1)
	b.Register("svc", "b", "", 1)
	b.SetStatus("svc", "a", StatusUnhealthy)

	if inst, _ := b.SelectInstance("svc", "random_magic"); inst.ID != "b" {
		t.Errorf("unknown algorithm selected %s, want first healthy b", inst.ID)
	}

	b.SetStatus("svc", "a", StatusHealthy)
	b.RegisterAlgorithm("last", SelectorFunc(func(_ string, healthy []Instance) int {
		return len(healthy) - 1
	}))
	if inst, _ := b.SelectInstance("svc", "last"); inst.ID != "b" {
		t.Errorf("custom algorithm selected %s, want b", inst.ID)
	}

	b.RegisterAlgorithm("broken", SelectorFunc(func(string, []Instance) int { return 99 }))
	if inst, _ := b.SelectInstance("svc", "broken"); inst.ID != "a" {
		t.Errorf("out of range index selected %s, want a", inst.ID)
	}
}

func TestRegister_Dedupes(t *testing.T) {
	t.Parallel()

	b := newTestBalancer(Config{})
	b.Register("svc", "a", "http://old", 2)
	b.Register("svc", "b", "http://b", 0)
	b.Register("svc", "a", "http://new", 5)

	st := b.Stats()
	if st.TotalServices != 1 || st.TotalInstances != 2 || st.HealthyInstances != 2 {
		t.Fatalf("Stats() = %+v", st)
	}
	insts := st.Services["svc"].Instances
	if insts[0].ID != "a" || insts[0].Endpoint != "http://new" || insts[0].Weight != 5 {
		t.Errorf("re-registered instance = %+v", insts[0])
	}
	if insts[1].Weight != 1 {
		t.Errorf("weight 0 stored as %d, want 1", insts[1].Weight)
	}

	if !b.Deregister("svc", "a") || b.Deregister("svc", "a") {
		t.Error("Deregister() results wrong")
	}
	b.Deregister("svc", "b")
	if got := b.Services(); len(got) != 0 {
		t.Errorf("Services() = %v after removing all instances", got)
	}
}

func TestRecordResponseTime_Bounded(t *testing.T) {
	t.Parallel()

	b := newTestBalancer(Config{SampleSize: 3})
	b.Register("svc", "a", "", 1)

	for i := 1; i <= 5; i++ {
		if !b.RecordResponseTime("svc", "a", time.Duration(i)*time.Second) {
			t.Fatal("RecordResponseTime() = false")
		}
	}
	if b.RecordResponseTime("svc", "missing", time.Second) {
		t.Error("RecordResponseTime() = true for unknown instance")
	}

	samples := b.ResponseTimes("svc", "a")
	if len(samples) != 3 || samples[0] != 3*time.Second {
		t.Errorf("samples = %v, want last three", samples)
	}
	if avg := b.Stats().Services["svc"].Instances[0].AvgResponseTime; avg != 4 {
		t.Errorf("AvgResponseTime = %v, want 4", avg)
	}
}

func TestReportHealth(t *testing.T) {
	t.Parallel()

	b := newTestBalancer(Config{FailureThreshold: 2})
	b.Register("svc", "a", "", 1)

	b.ReportHealth("svc", "a", false)
	if _, ok := b.SelectInstance("svc", RoundRobin); !ok {
		t.Fatal("instance unhealthy after one failure")
	}
	b.ReportHealth("svc", "a", false)
	if _, ok := b.SelectInstance("svc", RoundRobin); ok {
		t.Fatal("instance still healthy after threshold failures")
	}
	b.ReportHealth("svc", "a", true)
	if _, ok := b.SelectInstance("svc", RoundRobin); !ok {
		t.Fatal("instance not recovered after success")
	}
	if b.ReportHealth("svc", "missing", true) {
		t.Error("ReportHealth() = true for unknown instance")
	}
}

func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("success counts connections", func(t *testing.T) {
		t.Parallel()
		b := newTestBalancer(Config{})
		b.Register("svc", "a", "http://a", 1)

		err := b.Do(context.Background(), "svc", LeastConnections, func(ctx context.Context, inst Instance) error {
			if inst.Endpoint != "http://a" || inst.Connections != 1 {
				t.Errorf("inst = %+v, want one live connection", inst)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Do() = %v", err)
		}
		if inst, _ := b.SelectInstance("svc", LeastConnections); inst.Connections != 0 {
			t.Errorf("Connections = %d after call, want 0", inst.Connections)
		}
		if n := len(b.ResponseTimes("svc", "a")); n != 1 {
			t.Errorf("samples = %d, want 1", n)
		}
	})

	t.Run("no instance", func(t *testing.T) {
		t.Parallel()
		b := newTestBalancer(Config{})
		err := b.Do(context.Background(), "svc", RoundRobin, func(context.Context, Instance) error { return nil })
		if !errors.Is(err, ErrNoInstance) {
			t.Errorf("Do() = %v, want ErrNoInstance", err)
		}
	})

	t.Run("breaker opens after failures", func(t *testing.T) {
		t.Parallel()
		sink := &fakeSink{}
		b := newTestBalancer(Config{FailureThreshold: 2, BreakerTimeout: time.Hour, Errors: sink})
		b.Register("svc", "a", "", 1)

		errDown := errors.New("down")
		for i := 0; i < 2; i++ {
			if err := b.Do(context.Background(), "svc", RoundRobin, func(context.Context, Instance) error {
				return errDown
			}); !errors.Is(err, errDown) {
				t.Fatalf("Do() = %v, want errDown", err)
			}
		}
		if sink.count != 2 {
			t.Errorf("sink got %d errors, want 2", sink.count)
		}

		st := b.Stats()
		if st.HealthyInstances != 0 || st.Services["svc"].Instances[0].Breaker != "open" {
			t.Errorf("Stats() after trips = %+v", st)
		}
		err := b.Do(context.Background(), "svc", RoundRobin, func(context.Context, Instance) error { return nil })
		if !errors.Is(err, ErrNoInstance) {
			t.Errorf("Do() with open breaker = %v, want ErrNoInstance", err)
		}
	})

	t.Run("breaker half-opens after timeout", func(t *testing.T) {
		t.Parallel()
		b := newTestBalancer(Config{FailureThreshold: 1, BreakerTimeout: 20 * time.Millisecond})
		b.Register("svc", "a", "", 1)

		_ = b.Do(context.Background(), "svc", RoundRobin, func(context.Context, Instance) error {
			return errors.New("down")
		})
		if _, ok := b.SelectInstance("svc", RoundRobin); ok {
			t.Fatal("instance selectable with open breaker")
		}

		time.Sleep(40 * time.Millisecond)
		if err := b.Do(context.Background(), "svc", RoundRobin, func(context.Context, Instance) error {
			return nil
		}); err != nil {
			t.Fatalf("trial Do() = %v", err)
		}
		if br := b.Stats().Services["svc"].Instances[0].Breaker; br != "closed" {
			t.Errorf("breaker = %s after successful trial call, want closed", br)
		}
	})

	t.Run("panic and cancellation", func(t *testing.T) {
		t.Parallel()
		b := newTestBalancer(Config{FailureThreshold: 1, BreakerTimeout: time.Hour})
		b.Register("svc", "a", "", 1)

		ctx, cancel := context.WithCancel(context.Background())
		err := b.Do(ctx, "svc", RoundRobin, func(context.Context, Instance) error {
			cancel()
			return context.Canceled
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Do() = %v, want context.Canceled", err)
		}
		if _, ok := b.SelectInstance("svc", RoundRobin); !ok {
			t.Fatal("caller cancellation tripped the breaker")
		}
		if err := b.Do(ctx, "svc", RoundRobin, nil); !errors.Is(err, context.Canceled) {
			t.Errorf("Do() on done ctx = %v", err)
		}

		err = b.Do(context.Background(), "svc", RoundRobin, func(context.Context, Instance) error {
			panic("kaboom")
		})
		if err == nil || err.Error() != "panic: kaboom" {
			t.Errorf("Do() = %v, want panic: kaboom", err)
		}
	})
}
