// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package diag

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/perfcore/internal/balancer"
	"github.com/tomtom215/perfcore/internal/cache"
	"github.com/tomtom215/perfcore/internal/errtrack"
	"github.com/tomtom215/perfcore/internal/health"
	"github.com/tomtom215/perfcore/internal/metrics"
	"github.com/tomtom215/perfcore/internal/middleware"
	"github.com/tomtom215/perfcore/internal/monitor"
	"github.com/tomtom215/perfcore/internal/stream"
	"github.com/tomtom215/perfcore/internal/tasks"
	"github.com/tomtom215/perfcore/internal/validation"
)

// Component views served by the router.
type (
	MonitorView interface {
		Summary(window time.Duration) (monitor.Summary, bool)
		EndpointSummary(endpoint string, window time.Duration) (monitor.EndpointSummary, bool)
		Evaluate(window time.Duration) []monitor.Alert
		Endpoints() []string
		Thresholds() monitor.Thresholds
	}
	ErrorView interface {
		Summary(window time.Duration) errtrack.Summary
		Recent(n int) []errtrack.Record
		Get(id string) (errtrack.Record, bool)
	}
	TaskView interface {
		Status(id string) (tasks.Status, bool)
		Cancel(id string) bool
		Counts() map[tasks.State]int
	}
	StreamView interface {
		Status(id string) (stream.Status, bool)
		Streams() []stream.Status
	}
	BalancerView interface {
		Stats() balancer.Stats
	}
	HealthView interface {
		Report() health.Report
	}
)

// Deps are the components behind the routes. A nil component yields 404 on its routes.
type Deps struct {
	Cache    cache.Cacher
	Monitor  MonitorView
	Errors   ErrorView
	Tasks    TaskView
	Streams  StreamView
	Balancer BalancerView
	Health   HealthView

	// Track wraps every request in performance tracking when set.
	Track func(http.Handler) http.Handler

	// RateLimit is requests per RateLimitWindow per client IP. 0 disables limiting.
	RateLimit       int
	RateLimitWindow time.Duration

	// Clock stamps response metadata. Default: real clock
	Clock clockwork.Clock
}

// maxRecentErrors bounds the limit query parameter of /debug/errors.
const maxRecentErrors = 100

type router struct {
	Deps
	clock clockwork.Clock
}

// NewRouter builds the diagnostics handler.
func NewRouter(deps Deps) http.Handler {
	rt := &router{Deps: deps, clock: deps.Clock}
	if rt.clock == nil {
		rt.clock = clockwork.NewRealClock()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	if deps.Track != nil {
		r.Use(deps.Track)
	}
	r.Use(rt.rateLimit())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		rt.notFound(w, req, "route", req.URL.Path)
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compression)

		r.Get("/healthz", rt.healthz)

		r.Route("/debug", func(r chi.Router) {
			r.Get("/cache", rt.cacheStats)
			r.Delete("/cache", rt.cacheInvalidate)

			r.Get("/performance", rt.performance)
			r.Get("/performance/endpoints/*", rt.performanceEndpoint)

			r.Get("/errors", rt.errorSummary)
			r.Get("/errors/{id}", rt.errorRecord)

			r.Get("/tasks", rt.taskCounts)
			r.Get("/tasks/{id}", rt.taskStatus)
			r.Delete("/tasks/{id}", rt.taskCancel)

			r.Get("/streams", rt.streamList)
			r.Get("/streams/{id}", rt.streamStatus)

			r.Get("/balancer", rt.balancerStats)
		})
	})

	return r
}

// rateLimit is a per-IP httprate limiter, or a no-op when disabled.
func (rt *router) rateLimit() func(http.Handler) http.Handler {
	if rt.RateLimit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	window := rt.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		rt.RateLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimitRejections.Inc()
			rt.respondError(w, r, http.StatusTooManyRequests, &validation.APIError{
				Code:    CodeRateLimited,
				Message: "Too many requests",
			})
		}),
	)
}
