// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

// Package health aggregates the live state of every perfcore component into
// one report.
package health

import (
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tomtom215/perfcore/internal/balancer"
	"github.com/tomtom215/perfcore/internal/cache"
	"github.com/tomtom215/perfcore/internal/errtrack"
	"github.com/tomtom215/perfcore/internal/monitor"
	"github.com/tomtom215/perfcore/internal/tasks"
)

// DefaultWindow is the look-back of the monitor and error summaries.
const DefaultWindow = time.Hour

// StatusType is the overall report status.
type StatusType string

const (
	// StatusHealthy indicates no threshold breach and every instance healthy.
	StatusHealthy StatusType = "healthy"
	// StatusDegraded indicates at least one breach or unhealthy instance.
	StatusDegraded StatusType = "degraded"
)

// Component names used as Report.Components keys.
const (
	ComponentCache    = "cache"
	ComponentMonitor  = "performance_monitor"
	ComponentErrors   = "error_tracker"
	ComponentTasks    = "task_tracker"
	ComponentStreams  = "stream_processor"
	ComponentBalancer = "load_balancer"
)

// The narrow views the reporter reads.
type (
	CacheSource interface {
		Stats() cache.Stats
	}
	MonitorSource interface {
		Summary(window time.Duration) (monitor.Summary, bool)
		Evaluate(window time.Duration) []monitor.Alert
	}
	ErrorSource interface {
		Summary(window time.Duration) errtrack.Summary
	}
	TaskSource interface {
		Counts() map[tasks.State]int
	}
	StreamSource interface {
		ActiveCount() int
		FailedCount() int
	}
	BalancerSource interface {
		Stats() balancer.Stats
	}
)

// Sources are the components included in the report. Nil entries are skipped.
type Sources struct {
	Cache    CacheSource
	Monitor  MonitorSource
	Errors   ErrorSource
	Tasks    TaskSource
	Streams  StreamSource
	Balancer BalancerSource
}

// ComponentHealth is the health of one component.
type ComponentHealth struct {
	Name     string      `json:"name"`
	Healthy  bool        `json:"healthy"`
	Degraded bool        `json:"degraded,omitempty"`
	Message  string      `json:"message,omitempty"`
	Details  interface{} `json:"details,omitempty"`
}

// Report is the aggregated system health.
type Report struct {
	Status          StatusType                 `json:"overall_status"`
	Timestamp       time.Time                  `json:"timestamp"`
	Score           int                        `json:"performance_score,omitempty"`
	Grade           monitor.Grade              `json:"performance_grade,omitempty"`
	Components      map[string]ComponentHealth `json:"components"`
	Alerts          []monitor.Alert            `json:"alerts,omitempty"`
	Recommendations []string                   `json:"recommendations"`
}

// Reporter builds Reports on demand.
type Reporter struct {
	src    Sources
	window time.Duration
	clock  clockwork.Clock
}

// NewReporter creates a Reporter. window <= 0 means one hour; a nil clock
// means the real clock.
func NewReporter(src Sources, window time.Duration, clock clockwork.Clock) *Reporter {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Reporter{src: src, window: window, clock: clock}
}

// Report collects every configured component.
func (r *Reporter) Report() Report {
	rep := Report{
		Status:     StatusHealthy,
		Timestamp:  r.clock.Now(),
		Components: make(map[string]ComponentHealth, 6),
	}

	if r.src.Cache != nil {
		rep.Components[ComponentCache] = ComponentHealth{
			Name:    ComponentCache,
			Healthy: true,
			Details: r.src.Cache.Stats(),
		}
	}

	if r.src.Monitor != nil {
		r.addMonitor(&rep)
	}

	if r.src.Errors != nil {
		s := r.src.Errors.Summary(r.window)
		c := ComponentHealth{Name: ComponentErrors, Healthy: true, Details: s}
		if s.TotalErrors > 0 {
			c.Message = fmt.Sprintf("%d errors in the last %s, most common %s", s.TotalErrors, r.window, s.MostCommon)
		}
		rep.Components[ComponentErrors] = c
	}

	if r.src.Tasks != nil {
		counts := r.src.Tasks.Counts()
		rep.Components[ComponentTasks] = ComponentHealth{Name: ComponentTasks, Healthy: true, Details: counts}
	}

	if r.src.Streams != nil {
		r.addStreams(&rep)
	}

	if r.src.Balancer != nil {
		r.addBalancer(&rep)
	}

	if len(rep.Recommendations) == 0 {
		rep.Recommendations = []string{"All components healthy"}
	}
	return rep
}

func (r *Reporter) addMonitor(rep *Report) {
	c := ComponentHealth{Name: ComponentMonitor, Healthy: true}

	s, ok := r.src.Monitor.Summary(r.window)
	if !ok {
		c.Message = "no requests recorded in window"
		rep.Components[ComponentMonitor] = c
		return
	}
	c.Details = s
	rep.Score, rep.Grade = s.Score, s.Grade

	alerts := r.src.Monitor.Evaluate(r.window)
	if len(alerts) > 0 {
		c.Degraded = true
		c.Message = fmt.Sprintf("%d thresholds breached", len(alerts))
		rep.Status = StatusDegraded
		rep.Alerts = alerts
		for _, a := range alerts {
			rep.Recommendations = append(rep.Recommendations, recommendation(a))
		}
	}
	rep.Components[ComponentMonitor] = c
}

func (r *Reporter) addStreams(rep *Report) {
	active, failed := r.src.Streams.ActiveCount(), r.src.Streams.FailedCount()
	c := ComponentHealth{
		Name:    ComponentStreams,
		Healthy: true,
		Details: map[string]int{"active_streams": active, "failed_streams": failed},
	}
	if failed > 0 {
		c.Degraded = true
		c.Message = fmt.Sprintf("%d streams failed", failed)
		rep.Status = StatusDegraded
		rep.Recommendations = append(rep.Recommendations,
			fmt.Sprintf("Restart %d failed streams after checking the error log", failed))
	}
	rep.Components[ComponentStreams] = c
}

func (r *Reporter) addBalancer(rep *Report) {
	st := r.src.Balancer.Stats()
	c := ComponentHealth{Name: ComponentBalancer, Healthy: true, Details: st}

	if unhealthy := st.TotalInstances - st.HealthyInstances; unhealthy > 0 {
		c.Degraded = true
		c.Message = fmt.Sprintf("%d of %d instances unavailable", unhealthy, st.TotalInstances)
		rep.Status = StatusDegraded
		rep.Recommendations = append(rep.Recommendations,
			fmt.Sprintf("Investigate %d unavailable service instances", unhealthy))
	}
	names := make([]string, 0, len(st.Services))
	for name := range st.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if svc := st.Services[name]; svc.TotalInstances > 0 && svc.HealthyInstances == 0 {
			c.Healthy = false
			rep.Recommendations = append(rep.Recommendations,
				fmt.Sprintf("Service %s has no healthy instances", name))
		}
	}
	rep.Components[ComponentBalancer] = c
}

func recommendation(a monitor.Alert) string {
	switch a.Kind {
	case monitor.AlertSlowResponse:
		return "Average response time above threshold; review the slowest endpoints"
	case monitor.AlertErrorRate:
		return "Error rate above threshold; inspect the most common error types"
	case monitor.AlertCacheHitRate:
		return "Cache hit rate below threshold; consider longer TTLs or a larger cache"
	default:
		return a.Message
	}
}
