// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package monitor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/metrics"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxMetrics     = 10000
	DefaultResponseTime   = 2 * time.Second
	DefaultErrorRate      = 0.05
	DefaultCacheHitRate   = 0.8
	DefaultAlertRate      = 10
	DefaultAlertBurst     = 20
	DefaultAlertQueueSize = 256
	DefaultWindow         = 24 * time.Hour
)

// Metric is one finished request. Metrics are immutable once recorded.
type Metric struct {
	Endpoint     string        `json:"endpoint"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
	StatusCode   int           `json:"status_code"`
	CacheHit     bool          `json:"cache_hit"`
	Error        string        `json:"error,omitempty"`
}

// Thresholds are the alert ceilings/floors.
type Thresholds struct {
	ResponseTime time.Duration
	ErrorRate    float64
	CacheHitRate float64
}

// DefaultThresholds returns 2s / 5% / 80%.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ResponseTime: DefaultResponseTime,
		ErrorRate:    DefaultErrorRate,
		CacheHitRate: DefaultCacheHitRate,
	}
}

// Config configures a Recorder.
type Config struct {
	// MaxMetrics bounds the rolling buffer. Default: 10000
	MaxMetrics int

	// Thresholds for per-metric and window alerts. A zero Thresholds takes
	// DefaultThresholds. Otherwise rates are used as given, so a zero error
	// rate alerts on any error and a zero cache hit rate never alerts; a
	// non-positive ResponseTime takes DefaultResponseTime.
	Thresholds Thresholds

	// AlertRate is the sustained alerts per second delivered to Sink. Default: 10
	AlertRate float64

	// AlertBurst is the token bucket depth. Default: 20
	AlertBurst int

	// AlertQueueSize bounds pending alerts. Default: 256
	AlertQueueSize int

	// Clock is the time source. Default: real clock
	Clock clockwork.Clock

	// Sink receives alerts. Default: LogSink
	Sink AlertSink
}

// Recorder is a thread-safe rolling metrics buffer.
type Recorder struct {
	mu         sync.RWMutex
	metrics    []Metric
	maxMetrics int

	thresholds Thresholds
	clock      clockwork.Clock
	log        zerolog.Logger

	alerts  chan Alert
	limiter *rate.Limiter
	sink    AlertSink
}

// New creates a Recorder. Alerts are only delivered while Serve runs.
func New(cfg Config) *Recorder {
	if cfg.MaxMetrics <= 0 {
		cfg.MaxMetrics = DefaultMaxMetrics
	}
	if cfg.Thresholds == (Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	if cfg.Thresholds.ResponseTime <= 0 {
		cfg.Thresholds.ResponseTime = DefaultResponseTime
	}
	if cfg.Thresholds.ErrorRate < 0 {
		cfg.Thresholds.ErrorRate = DefaultErrorRate
	}
	if cfg.Thresholds.CacheHitRate < 0 {
		cfg.Thresholds.CacheHitRate = DefaultCacheHitRate
	}
	if cfg.AlertRate <= 0 {
		cfg.AlertRate = DefaultAlertRate
	}
	if cfg.AlertBurst <= 0 {
		cfg.AlertBurst = DefaultAlertBurst
	}
	if cfg.AlertQueueSize <= 0 {
		cfg.AlertQueueSize = DefaultAlertQueueSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	log := logging.WithComponent("monitor")
	if cfg.Sink == nil {
		cfg.Sink = NewLogSink(log)
	}

	return &Recorder{
		metrics:    make([]Metric, 0, min(cfg.MaxMetrics, 4096)),
		maxMetrics: cfg.MaxMetrics,
		thresholds: cfg.Thresholds,
		clock:      cfg.Clock,
		log:        log,
		alerts:     make(chan Alert, cfg.AlertQueueSize),
		limiter:    rate.NewLimiter(rate.Limit(cfg.AlertRate), cfg.AlertBurst),
		sink:       cfg.Sink,
	}
}

// Thresholds returns the configured thresholds.
func (r *Recorder) Thresholds() Thresholds {
	return r.thresholds
}

// Record appends m to the buffer and queues any alerts it triggers.
// A zero Timestamp is replaced with the current time.
func (r *Recorder) Record(m Metric) {
	if m.Timestamp.IsZero() {
		m.Timestamp = r.clock.Now()
	}

	r.mu.Lock()
	r.metrics = append(r.metrics, m)
	if len(r.metrics) > r.maxMetrics {
		r.metrics = r.metrics[len(r.metrics)-r.maxMetrics:]
	}
	r.mu.Unlock()

	metrics.RecordRequestMetric(m.ResponseTime, m.Error != "")

	if m.ResponseTime > r.thresholds.ResponseTime {
		r.enqueue(Alert{
			Kind:      AlertSlowResponse,
			Endpoint:  m.Endpoint,
			Value:     m.ResponseTime.Seconds(),
			Threshold: r.thresholds.ResponseTime.Seconds(),
			Message:   fmt.Sprintf("High response time: %.3fs for %s", m.ResponseTime.Seconds(), m.Endpoint),
			Timestamp: m.Timestamp,
		})
	}
	if m.Error != "" {
		r.enqueue(Alert{
			Kind:      AlertRequestError,
			Endpoint:  m.Endpoint,
			Message:   "Error in " + m.Endpoint + ": " + m.Error,
			Timestamp: m.Timestamp,
		})
	}
}

// Len returns the number of buffered metrics.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.metrics)
}

// Recent returns the most recent n metrics, oldest first.
func (r *Recorder) Recent(n int) []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n > len(r.metrics) || n < 0 {
		n = len(r.metrics)
	}
	recent := make([]Metric, n)
	copy(recent, r.metrics[len(r.metrics)-n:])
	return recent
}

// Endpoints returns the distinct endpoints present in the buffer, sorted.
func (r *Recorder) Endpoints() []string {
	r.mu.RLock()
	seen := make(map[string]struct{})
	for i := range r.metrics {
		seen[r.metrics[i].Endpoint] = struct{}{}
	}
	r.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for e := range seen {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// window returns the metrics with timestamp strictly after now-window that
// satisfy keep (nil keeps all).
func (r *Recorder) window(window time.Duration, keep func(*Metric) bool) []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cutoff := r.clock.Now().Add(-window)
	var out []Metric
	for i := range r.metrics {
		m := &r.metrics[i]
		if m.Timestamp.After(cutoff) && (keep == nil || keep(m)) {
			out = append(out, *m)
		}
	}
	return out
}
