// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package main

import (
	"net/http"
	"time"

	"github.com/tomtom215/perfcore/internal/balancer"
	"github.com/tomtom215/perfcore/internal/cache"
	"github.com/tomtom215/perfcore/internal/config"
	"github.com/tomtom215/perfcore/internal/diag"
	"github.com/tomtom215/perfcore/internal/errtrack"
	"github.com/tomtom215/perfcore/internal/health"
	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/monitor"
	"github.com/tomtom215/perfcore/internal/stream"
	"github.com/tomtom215/perfcore/internal/supervisor"
	"github.com/tomtom215/perfcore/internal/supervisor/services"
	"github.com/tomtom215/perfcore/internal/tasks"
)

// components is the wired set of perfcore subsystems.
type components struct {
	errors   *errtrack.Aggregator
	cache    *cache.Store
	monitor  *monitor.Recorder
	tracker  *tasks.Tracker
	streams  *stream.Processor
	balancer *balancer.Balancer
	health   *health.Reporter
}

// newComponents builds every subsystem from cfg. The error aggregator is the
// failure sink of the task pool, the stream processor and the balancer.
func newComponents(cfg *config.Config) *components {
	errs := errtrack.New(errtrack.Config{MaxErrors: cfg.Errors.MaxErrors})

	c := &components{
		errors: errs,
		cache: cache.New(cache.Config{
			MaxItems:   cfg.Cache.MaxItems,
			DefaultTTL: cfg.Cache.DefaultTTL,
		}),
		monitor: monitor.New(monitor.Config{
			MaxMetrics: cfg.Monitor.MaxMetrics,
			Thresholds: monitor.Thresholds{
				ResponseTime: cfg.Monitor.Thresholds.ResponseTime,
				ErrorRate:    cfg.Monitor.Thresholds.ErrorRate,
				CacheHitRate: cfg.Monitor.Thresholds.CacheHitRate,
			},
			AlertRate:  cfg.Monitor.AlertRate,
			AlertBurst: cfg.Monitor.AlertBurst,
			Sink:       monitor.NewLogSink(logging.WithComponent("alerts")),
		}),
		tracker: tasks.New(tasks.Config{
			Workers: cfg.Tasks.Workers,
			Errors:  errs,
		}),
		streams: stream.New(stream.Config{
			BufferSize:   cfg.Stream.BufferSize,
			TickInterval: cfg.Stream.TickInterval,
			BatchSize:    cfg.Stream.BatchSize,
			Errors:       errs,
		}),
		balancer: balancer.New(balancer.Config{
			SampleSize:       cfg.Balancer.SampleSize,
			FailureThreshold: cfg.Balancer.FailureThreshold,
			BreakerTimeout:   cfg.Balancer.BreakerTimeout,
			Errors:           errs,
		}),
	}
	c.health = health.NewReporter(health.Sources{
		Cache:    c.cache,
		Monitor:  c.monitor,
		Errors:   c.errors,
		Tasks:    c.tracker,
		Streams:  c.streams,
		Balancer: c.balancer,
	}, time.Hour, nil)
	return c
}

// router builds the diagnostics handler over the components.
func (c *components) router(cfg config.ServerConfig) http.Handler {
	return diag.NewRouter(diag.Deps{
		Cache:           c.cache,
		Monitor:         c.monitor,
		Errors:          c.errors,
		Tasks:           c.tracker,
		Streams:         c.streams,
		Balancer:        c.balancer,
		Health:          c.health,
		Track:           c.monitor.Middleware,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
	})
}

// register adds the long-lived services to their supervisor layers.
func (c *components) register(tree *supervisor.SupervisorTree, cfg *config.Config) {
	if cfg.Cache.SweepInterval > 0 {
		tree.AddCoreService(cache.NewSweeper(c.cache, cfg.Cache.SweepInterval))
	}
	if cfg.Tasks.Retention > 0 {
		tree.AddCoreService(tasks.NewJanitor(c.tracker, cfg.Tasks.Retention, cfg.Tasks.PruneInterval))
	}
	tree.AddCoreService(c.monitor)
	tree.AddCoreService(services.NewShutdownService("task-tracker", c.tracker.Shutdown, cfg.Supervisor.ShutdownTimeout))

	tree.AddStreamService(c.streams)

	if cfg.Server.Enabled {
		server := &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           c.router(cfg.Server),
			ReadHeaderTimeout: cfg.Server.Timeout,
			ReadTimeout:       cfg.Server.Timeout,
			WriteTimeout:      cfg.Server.Timeout,
			IdleTimeout:       60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))
	}
}
