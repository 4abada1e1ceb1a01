// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/perfcore/internal/metrics"
)

type collectSink struct {
	alerts chan Alert
}

func newCollectSink() *collectSink {
	return &collectSink{alerts: make(chan Alert, 16)}
}

func (s *collectSink) Alert(a Alert) { s.alerts <- a }

func newTestRecorder(t *testing.T, cfg Config) (*Recorder, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg.Clock = clock
	if cfg.Sink == nil {
		cfg.Sink = newCollectSink()
	}
	return New(cfg), clock
}

func TestRecorder_BufferBounded(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t, Config{MaxMetrics: 3})
	for i := 0; i < 5; i++ {
		r.Record(Metric{Endpoint: "/e", ResponseTime: time.Duration(i+1) * time.Millisecond})
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	recent := r.Recent(10)
	if recent[0].ResponseTime != 3*time.Millisecond || recent[2].ResponseTime != 5*time.Millisecond {
		t.Errorf("oldest entries not dropped: %+v", recent)
	}
	if got := r.Recent(1); len(got) != 1 || got[0].ResponseTime != 5*time.Millisecond {
		t.Errorf("Recent(1) = %+v", got)
	}
}

func TestRecorder_DefaultTimestamp(t *testing.T) {
	t.Parallel()

	r, clock := newTestRecorder(t, Config{})
	r.Record(Metric{Endpoint: "/a"})

	if got := r.Recent(1)[0].Timestamp; !got.Equal(clock.Now()) {
		t.Errorf("Timestamp = %v, want %v", got, clock.Now())
	}
}

func TestRecorder_Summary(t *testing.T) {
	t.Parallel()

	t.Run("no data", func(t *testing.T) {
		t.Parallel()
		r, _ := newTestRecorder(t, Config{})
		if _, ok := r.Summary(time.Hour); ok {
			t.Error("Summary() ok = true on empty recorder")
		}
	})

	t.Run("aggregates", func(t *testing.T) {
		t.Parallel()
		r, _ := newTestRecorder(t, Config{})
		r.Record(Metric{Endpoint: "/a", ResponseTime: 100 * time.Millisecond, CacheHit: true})
		r.Record(Metric{Endpoint: "/a", ResponseTime: 200 * time.Millisecond, CacheHit: true})
		r.Record(Metric{Endpoint: "/b", ResponseTime: 300 * time.Millisecond, CacheHit: true})
		r.Record(Metric{Endpoint: "/b", ResponseTime: 400 * time.Millisecond, Error: "boom"})

		s, ok := r.Summary(time.Hour)
		if !ok {
			t.Fatal("Summary() ok = false")
		}
		if s.TotalRequests != 4 {
			t.Errorf("TotalRequests = %d, want 4", s.TotalRequests)
		}
		if s.AvgResponseTime != 0.25 {
			t.Errorf("AvgResponseTime = %v, want 0.25", s.AvgResponseTime)
		}
		if s.MaxResponseTime != 0.4 || s.MinResponseTime != 0.1 {
			t.Errorf("Max/Min = %v/%v, want 0.4/0.1", s.MaxResponseTime, s.MinResponseTime)
		}
		if s.ErrorRate != 0.25 {
			t.Errorf("ErrorRate = %v, want 0.25", s.ErrorRate)
		}
		if s.CacheHitRate != 0.75 {
			t.Errorf("CacheHitRate = %v, want 0.75", s.CacheHitRate)
		}
		if s.RequestsPerHour != 4 {
			t.Errorf("RequestsPerHour = %v, want 4", s.RequestsPerHour)
		}
		// 100 - 30 (error rate) - 10 (hit rate)
		if s.Score != 60 || s.Grade != GradeD {
			t.Errorf("Score/Grade = %d/%s, want 60/D", s.Score, s.Grade)
		}
	})

	t.Run("window excludes old metrics", func(t *testing.T) {
		t.Parallel()
		r, clock := newTestRecorder(t, Config{})
		r.Record(Metric{Endpoint: "/a", ResponseTime: time.Second})
		clock.Advance(2 * time.Hour)
		r.Record(Metric{Endpoint: "/a", ResponseTime: 3 * time.Second})

		s, ok := r.Summary(time.Hour)
		if !ok {
			t.Fatal("Summary() ok = false")
		}
		if s.TotalRequests != 1 || s.AvgResponseTime != 3 {
			t.Errorf("Summary() = %+v, want only the recent metric", s)
		}
	})

	t.Run("metric exactly at cutoff excluded", func(t *testing.T) {
		t.Parallel()
		r, clock := newTestRecorder(t, Config{})
		r.Record(Metric{Endpoint: "/a"})
		clock.Advance(time.Hour)
		if _, ok := r.Summary(time.Hour); ok {
			t.Error("metric at now-window counted")
		}
	})
}

func TestRecorder_EndpointSummary(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t, Config{})
	for i := 1; i <= 10; i++ {
		r.Record(Metric{Endpoint: "/p", ResponseTime: time.Duration(i) * time.Second, CacheHit: i%2 == 0})
	}
	r.Record(Metric{Endpoint: "/other", ResponseTime: time.Millisecond, Error: "x"})

	s, ok := r.EndpointSummary("/p", time.Hour)
	if !ok {
		t.Fatal("EndpointSummary() ok = false")
	}
	if s.TotalRequests != 10 || s.ErrorCount != 0 {
		t.Errorf("TotalRequests/ErrorCount = %d/%d", s.TotalRequests, s.ErrorCount)
	}
	if s.AvgResponseTime != 5.5 {
		t.Errorf("AvgResponseTime = %v, want 5.5", s.AvgResponseTime)
	}
	if s.P95ResponseTime != 9.55 {
		t.Errorf("P95ResponseTime = %v, want 9.55", s.P95ResponseTime)
	}
	if s.CacheHitRate != 0.5 {
		t.Errorf("CacheHitRate = %v, want 0.5", s.CacheHitRate)
	}

	if _, ok := r.EndpointSummary("/missing", time.Hour); ok {
		t.Error("EndpointSummary() ok = true for unknown endpoint")
	}

	eps := r.Endpoints()
	if len(eps) != 2 || eps[0] != "/other" || eps[1] != "/p" {
		t.Errorf("Endpoints() = %v", eps)
	}
}

func TestPercentile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 95, 0},
		{"single", []float64{2}, 95, 2},
		{"two", []float64{2, 1}, 50, 1.5},
		{"exact rank", []float64{1, 2, 3, 4, 5}, 50, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := percentile(tt.values, tt.p); got != tt.want {
				t.Errorf("percentile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeGrade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		avg       float64
		errRate   float64
		hitRate   float64
		wantScore int
		wantGrade Grade
	}{
		{"perfect", 0.1, 0, 1, 100, GradeA},
		{"slowish", 0.6, 0, 0.9, 90, GradeA},
		{"slow", 1.5, 0, 0.9, 80, GradeB},
		{"some errors", 0.1, 0.02, 0.9, 85, GradeB},
		{"boundary values carry no penalty", 0.5, 0.01, 0.8, 100, GradeA},
		{"mediocre", 0.6, 0.02, 0.75, 65, GradeD},
		{"worst", 1.5, 0.08, 0.5, 30, GradeF},
		{"seventy", 1.5, 0, 0.75, 70, GradeC},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			score, grade := ComputeGrade(tt.avg, tt.errRate, tt.hitRate)
			if score != tt.wantScore || grade != tt.wantGrade {
				t.Errorf("ComputeGrade() = %d/%s, want %d/%s", score, grade, tt.wantScore, tt.wantGrade)
			}
		})
	}
}

func TestRecorder_Evaluate(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t, Config{Thresholds: Thresholds{
		ResponseTime: time.Second,
		ErrorRate:    0.1,
		CacheHitRate: 0.5,
	}})
	if got := r.Evaluate(time.Hour); got != nil {
		t.Errorf("Evaluate() on empty = %v", got)
	}

	r.Record(Metric{Endpoint: "/a", ResponseTime: 3 * time.Second, Error: "x"})
	r.Record(Metric{Endpoint: "/a", ResponseTime: time.Second})

	kinds := map[AlertKind]bool{}
	for _, a := range r.Evaluate(time.Hour) {
		kinds[a.Kind] = true
	}
	for _, k := range []AlertKind{AlertSlowResponse, AlertErrorRate, AlertCacheHitRate} {
		if !kinds[k] {
			t.Errorf("Evaluate() missing %s", k)
		}
	}
}

func TestRecorder_Thresholds(t *testing.T) {
	t.Parallel()

	t.Run("zero value takes defaults", func(t *testing.T) {
		t.Parallel()
		r, _ := newTestRecorder(t, Config{})
		if got := r.Thresholds(); got != DefaultThresholds() {
			t.Errorf("Thresholds() = %+v, want %+v", got, DefaultThresholds())
		}
	})

	t.Run("explicit zero rates are kept", func(t *testing.T) {
		t.Parallel()
		want := Thresholds{ResponseTime: 2 * time.Second}
		r, _ := newTestRecorder(t, Config{Thresholds: want})
		if got := r.Thresholds(); got != want {
			t.Fatalf("Thresholds() = %+v, want %+v", got, want)
		}

		r.Record(Metric{Endpoint: "/a", ResponseTime: time.Millisecond})
		if got := r.Evaluate(time.Hour); got != nil {
			t.Errorf("Evaluate() with a zero cache hit floor = %v, want none", got)
		}

		r.Record(Metric{Endpoint: "/a", ResponseTime: time.Millisecond, Error: "x"})
		alerts := r.Evaluate(time.Hour)
		if len(alerts) != 1 || alerts[0].Kind != AlertErrorRate {
			t.Errorf("Evaluate() = %v, want a single error rate alert", alerts)
		}
	})

	t.Run("negative values take defaults", func(t *testing.T) {
		t.Parallel()
		r, _ := newTestRecorder(t, Config{Thresholds: Thresholds{ResponseTime: -1, ErrorRate: -1, CacheHitRate: -1}})
		if got := r.Thresholds(); got != DefaultThresholds() {
			t.Errorf("Thresholds() = %+v, want %+v", got, DefaultThresholds())
		}
	})
}

func TestRecorder_AlertQueue(t *testing.T) {
	r, _ := newTestRecorder(t, Config{
		AlertQueueSize: 1,
		Thresholds:     Thresholds{ResponseTime: time.Second},
	})

	dropped := metrics.MonitorAlerts.WithLabelValues(string(AlertSlowResponse), "dropped")
	before := testutil.ToFloat64(dropped)

	// At threshold: no alert.
	r.Record(Metric{Endpoint: "/a", ResponseTime: time.Second})
	if len(r.alerts) != 0 {
		t.Fatalf("alert queued for response time equal to threshold")
	}

	r.Record(Metric{Endpoint: "/a", ResponseTime: 2 * time.Second})
	r.Record(Metric{Endpoint: "/a", ResponseTime: 2 * time.Second})

	if len(r.alerts) != 1 {
		t.Errorf("queued alerts = %d, want 1", len(r.alerts))
	}
	if got := testutil.ToFloat64(dropped) - before; got != 1 {
		t.Errorf("dropped alerts = %v, want 1", got)
	}

	a := <-r.alerts
	if a.Kind != AlertSlowResponse || a.Message != "High response time: 2.000s for /a" {
		t.Errorf("alert = %+v", a)
	}
}

func TestRecorder_ErrorAlert(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t, Config{})
	r.Record(Metric{Endpoint: "/a", Error: "db down"})

	a := <-r.alerts
	if a.Kind != AlertRequestError || a.Message != "Error in /a: db down" {
		t.Errorf("alert = %+v", a)
	}
}

func TestRecorder_Serve(t *testing.T) {
	t.Parallel()

	sink := newCollectSink()
	r, _ := newTestRecorder(t, Config{Sink: sink})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	r.Record(Metric{Endpoint: "/a", Error: "x"})

	select {
	case a := <-sink.alerts:
		if a.Endpoint != "/a" {
			t.Errorf("alert endpoint = %q", a.Endpoint)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alert not delivered")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
}

func TestRecorder_DispatchRateLimited(t *testing.T) {
	sink := newCollectSink()
	r, clock := newTestRecorder(t, Config{Sink: sink, AlertRate: 1, AlertBurst: 2})

	suppressed := metrics.MonitorAlerts.WithLabelValues(string(AlertRequestError), "suppressed")
	before := testutil.ToFloat64(suppressed)

	a := Alert{Kind: AlertRequestError, Endpoint: "/a"}
	for i := 0; i < 5; i++ {
		r.dispatch(a)
	}
	if len(sink.alerts) != 2 {
		t.Errorf("delivered = %d, want 2", len(sink.alerts))
	}
	if got := testutil.ToFloat64(suppressed) - before; got != 3 {
		t.Errorf("suppressed = %v, want 3", got)
	}

	clock.Advance(time.Second)
	r.dispatch(a)
	if len(sink.alerts) != 3 {
		t.Errorf("delivered after refill = %d, want 3", len(sink.alerts))
	}
}

func TestRecorder_Track(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t, Config{})

	if err := r.Track("op", func() (bool, error) { return true, nil }); err != nil {
		t.Fatalf("Track() = %v", err)
	}
	errBoom := errors.New("boom")
	if err := r.Track("op", func() (bool, error) { return false, errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("Track() = %v, want errBoom", err)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic not re-raised")
			}
		}()
		_ = r.Track("op", func() (bool, error) { panic("kaboom") })
	}()

	ms := r.Recent(3)
	if !ms[0].CacheHit || ms[0].Error != "" || ms[0].StatusCode != http.StatusOK {
		t.Errorf("success metric = %+v", ms[0])
	}
	if ms[1].Error != "boom" || ms[1].StatusCode != http.StatusInternalServerError {
		t.Errorf("error metric = %+v", ms[1])
	}
	if ms[2].Error != "panic: kaboom" {
		t.Errorf("panic metric = %+v", ms[2])
	}
}

func TestRecorder_Middleware(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t, Config{})
	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/cached":
			w.Header().Set(CacheHeader, "HIT")
			_, _ = w.Write([]byte("ok"))
		case "/fail":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	for _, path := range []string{"/cached", "/fail", "/missing"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	ms := r.Recent(3)
	if ms[0].Endpoint != "GET /cached" || !ms[0].CacheHit || ms[0].StatusCode != http.StatusOK {
		t.Errorf("cached metric = %+v", ms[0])
	}
	if ms[1].StatusCode != http.StatusServiceUnavailable || ms[1].Error != "Service Unavailable" {
		t.Errorf("fail metric = %+v", ms[1])
	}
	if ms[2].StatusCode != http.StatusNotFound || ms[2].Error != "" {
		t.Errorf("not found metric = %+v", ms[2])
	}
}

func TestRecorder_MiddlewarePanic(t *testing.T) {
	t.Parallel()

	r, _ := newTestRecorder(t, Config{})
	h := r.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler exploded")
	}))

	func() {
		defer func() {
			if p := recover(); p != "handler exploded" {
				t.Errorf("recovered %v, want the handler panic re-raised", p)
			}
		}()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	}()

	ms := r.Recent(1)
	if len(ms) != 1 {
		t.Fatalf("recorded %d metrics, want 1", len(ms))
	}
	if ms[0].Endpoint != "GET /boom" || ms[0].StatusCode != http.StatusInternalServerError || ms[0].Error != "panic: handler exploded" {
		t.Errorf("panic metric = %+v", ms[0])
	}
}
