// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package diag

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/perfcore/internal/errtrack"
	"github.com/tomtom215/perfcore/internal/monitor"
	"github.com/tomtom215/perfcore/internal/tasks"
	"github.com/tomtom215/perfcore/internal/validation"
)

// PerformanceResponse is the body of /debug/performance.
type PerformanceResponse struct {
	Summary    *monitor.Summary   `json:"summary,omitempty"`
	Message    string             `json:"message,omitempty"`
	Alerts     []monitor.Alert    `json:"alerts"`
	Thresholds monitor.Thresholds `json:"thresholds"`
	Endpoints  []string           `json:"endpoints"`
}

// ErrorsResponse is the body of /debug/errors.
type ErrorsResponse struct {
	Summary errtrack.Summary  `json:"summary"`
	Recent  []errtrack.Record `json:"recent_errors"`
}

// TaskCountsResponse is the body of /debug/tasks.
type TaskCountsResponse struct {
	Total  int                 `json:"total"`
	Counts map[tasks.State]int `json:"counts"`
}

func (rt *router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.Health == nil {
		rt.notFound(w, r, "health reporter", "")
		return
	}
	rt.respondData(w, r, rt.Health.Report())
}

func (rt *router) cacheStats(w http.ResponseWriter, r *http.Request) {
	if rt.Cache == nil {
		rt.notFound(w, r, "cache", "")
		return
	}
	rt.respondData(w, r, rt.Cache.Stats())
}

func (rt *router) cacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if rt.Cache == nil {
		rt.notFound(w, r, "cache", "")
		return
	}
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		rt.respondError(w, r, http.StatusBadRequest, &validation.APIError{
			Code:    CodeValidation,
			Message: "pattern is required",
		})
		return
	}
	rt.respondData(w, r, map[string]interface{}{
		"pattern":     pattern,
		"invalidated": rt.Cache.Invalidate(pattern),
	})
}

func (rt *router) performance(w http.ResponseWriter, r *http.Request) {
	if rt.Monitor == nil {
		rt.notFound(w, r, "performance monitor", "")
		return
	}
	window, apiErr := parseWindow(r)
	if apiErr != nil {
		rt.respondError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	resp := PerformanceResponse{
		Alerts:     []monitor.Alert{},
		Thresholds: rt.Monitor.Thresholds(),
		Endpoints:  rt.Monitor.Endpoints(),
	}
	if sum, ok := rt.Monitor.Summary(window); ok {
		resp.Summary = &sum
	} else {
		resp.Message = "No metrics available for the requested window"
	}
	if alerts := rt.Monitor.Evaluate(window); len(alerts) > 0 {
		resp.Alerts = alerts
	}
	rt.respondData(w, r, resp)
}

func (rt *router) performanceEndpoint(w http.ResponseWriter, r *http.Request) {
	if rt.Monitor == nil {
		rt.notFound(w, r, "performance monitor", "")
		return
	}
	window, apiErr := parseWindow(r)
	if apiErr != nil {
		rt.respondError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	endpoint := strings.TrimSpace(chi.URLParam(r, "*"))
	sum, ok := rt.Monitor.EndpointSummary(endpoint, window)
	if !ok {
		rt.notFound(w, r, "endpoint metrics", endpoint)
		return
	}
	rt.respondData(w, r, sum)
}

func (rt *router) errorSummary(w http.ResponseWriter, r *http.Request) {
	if rt.Errors == nil {
		rt.notFound(w, r, "error tracker", "")
		return
	}
	window, apiErr := parseWindow(r)
	if apiErr != nil {
		rt.respondError(w, r, http.StatusBadRequest, apiErr)
		return
	}
	rt.respondData(w, r, ErrorsResponse{
		Summary: rt.Errors.Summary(window),
		Recent:  rt.Errors.Recent(getIntParam(r, "limit", 20, maxRecentErrors)),
	})
}

func (rt *router) errorRecord(w http.ResponseWriter, r *http.Request) {
	if rt.Errors == nil {
		rt.notFound(w, r, "error tracker", "")
		return
	}
	id := chi.URLParam(r, "id")
	rec, ok := rt.Errors.Get(id)
	if !ok {
		rt.notFound(w, r, "error", id)
		return
	}
	rt.respondData(w, r, rec)
}

func (rt *router) taskCounts(w http.ResponseWriter, r *http.Request) {
	if rt.Tasks == nil {
		rt.notFound(w, r, "task tracker", "")
		return
	}
	counts := rt.Tasks.Counts()
	total := 0
	for _, n := range counts {
		total += n
	}
	rt.respondData(w, r, TaskCountsResponse{Total: total, Counts: counts})
}

func (rt *router) taskStatus(w http.ResponseWriter, r *http.Request) {
	if rt.Tasks == nil {
		rt.notFound(w, r, "task tracker", "")
		return
	}
	id := chi.URLParam(r, "id")
	st, ok := rt.Tasks.Status(id)
	if !ok {
		rt.notFound(w, r, "task", id)
		return
	}
	rt.respondData(w, r, st)
}

func (rt *router) taskCancel(w http.ResponseWriter, r *http.Request) {
	if rt.Tasks == nil {
		rt.notFound(w, r, "task tracker", "")
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := rt.Tasks.Status(id); !ok {
		rt.notFound(w, r, "task", id)
		return
	}
	if !rt.Tasks.Cancel(id) {
		rt.respondError(w, r, http.StatusConflict, &validation.APIError{
			Code:    "TASK_NOT_CANCELLABLE",
			Message: "Task has already started",
			Details: map[string]interface{}{"id": id},
		})
		return
	}
	st, _ := rt.Tasks.Status(id)
	rt.respondData(w, r, st)
}

func (rt *router) streamList(w http.ResponseWriter, r *http.Request) {
	if rt.Streams == nil {
		rt.notFound(w, r, "stream processor", "")
		return
	}
	rt.respondData(w, r, rt.Streams.Streams())
}

func (rt *router) streamStatus(w http.ResponseWriter, r *http.Request) {
	if rt.Streams == nil {
		rt.notFound(w, r, "stream processor", "")
		return
	}
	id := chi.URLParam(r, "id")
	st, ok := rt.Streams.Status(id)
	if !ok {
		rt.notFound(w, r, "stream", id)
		return
	}
	rt.respondData(w, r, st)
}

func (rt *router) balancerStats(w http.ResponseWriter, r *http.Request) {
	if rt.Balancer == nil {
		rt.notFound(w, r, "load balancer", "")
		return
	}
	rt.respondData(w, r, rt.Balancer.Stats())
}
