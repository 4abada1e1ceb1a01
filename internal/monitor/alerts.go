// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/perfcore/internal/metrics"
)

// AlertKind names the condition that raised an alert.
type AlertKind string

const (
	// AlertSlowResponse fires for a single request slower than the threshold,
	// and for a window whose average exceeds it.
	AlertSlowResponse AlertKind = "slow_response"

	// AlertRequestError fires for a single request that carried an error.
	AlertRequestError AlertKind = "error"

	// AlertErrorRate fires when a window's error rate exceeds the threshold.
	AlertErrorRate AlertKind = "error_rate"

	// AlertCacheHitRate fires when a window's cache hit rate falls below the threshold.
	AlertCacheHitRate AlertKind = "cache_hit_rate"
)

// Alert is a threshold breach.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Message   string    `json:"message"`
	Value     float64   `json:"value,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertSink receives dispatched alerts.
type AlertSink interface {
	Alert(a Alert)
}

// AlertSinkFunc adapts a function to AlertSink.
type AlertSinkFunc func(Alert)

// Alert calls f(a).
func (f AlertSinkFunc) Alert(a Alert) { f(a) }

// LogSink writes alerts as warn-level events.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink returns a LogSink writing to log.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Alert implements AlertSink.
func (s *LogSink) Alert(a Alert) {
	ev := s.log.Warn().
		Str("kind", string(a.Kind)).
		Str("endpoint", a.Endpoint)
	if a.Threshold != 0 {
		ev = ev.Float64("value", a.Value).Float64("threshold", a.Threshold)
	}
	ev.Str("alert", a.Message).Msg("Performance alert")
}

// enqueue never blocks; a full queue drops the alert.
func (r *Recorder) enqueue(a Alert) {
	select {
	case r.alerts <- a:
		metrics.RecordAlert(string(a.Kind), "queued")
	default:
		metrics.RecordAlert(string(a.Kind), "dropped")
	}
}

// Serve dispatches queued alerts to the sink until ctx is done.
// Alerts beyond the token bucket are discarded and counted as suppressed.
func (r *Recorder) Serve(ctx context.Context) error {
	r.log.Debug().Msg("Alert dispatcher started")
	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("Alert dispatcher stopped")
			return ctx.Err()
		case a := <-r.alerts:
			r.dispatch(a)
		}
	}
}

func (r *Recorder) dispatch(a Alert) {
	if !r.limiter.AllowN(r.clock.Now(), 1) {
		metrics.RecordAlert(string(a.Kind), "suppressed")
		return
	}
	r.sink.Alert(a)
	metrics.RecordAlert(string(a.Kind), "delivered")
}

// String implements fmt.Stringer for the supervisor.
func (r *Recorder) String() string {
	return "monitor-alerts"
}

// Evaluate compares the window summary against all three thresholds and
// returns the breaches. An empty window yields no alerts.
func (r *Recorder) Evaluate(window time.Duration) []Alert {
	s, ok := r.Summary(window)
	if !ok {
		return nil
	}

	now := r.clock.Now()
	var alerts []Alert

	rt := r.thresholds.ResponseTime.Seconds()
	if s.AvgResponseTime > rt {
		alerts = append(alerts, Alert{
			Kind:      AlertSlowResponse,
			Message:   fmt.Sprintf("Average response time %.3fs exceeds %.3fs", s.AvgResponseTime, rt),
			Value:     s.AvgResponseTime,
			Threshold: rt,
			Timestamp: now,
		})
	}
	if s.ErrorRate > r.thresholds.ErrorRate {
		alerts = append(alerts, Alert{
			Kind:      AlertErrorRate,
			Message:   fmt.Sprintf("Error rate %.3f exceeds %.3f", s.ErrorRate, r.thresholds.ErrorRate),
			Value:     s.ErrorRate,
			Threshold: r.thresholds.ErrorRate,
			Timestamp: now,
		})
	}
	if s.CacheHitRate < r.thresholds.CacheHitRate {
		alerts = append(alerts, Alert{
			Kind:      AlertCacheHitRate,
			Message:   fmt.Sprintf("Cache hit rate %.3f below %.3f", s.CacheHitRate, r.thresholds.CacheHitRate),
			Value:     s.CacheHitRate,
			Threshold: r.thresholds.CacheHitRate,
			Timestamp: now,
		})
	}
	return alerts
}
