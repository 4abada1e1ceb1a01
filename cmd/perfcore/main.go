// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

// Package main runs the perfcore components under a supervisor tree with the
// diagnostics HTTP server in front of them.
//
// Start-up order:
//
//  1. Configuration: defaults, optional config.yaml, environment (koanf)
//  2. Logging: zerolog from the logging section
//  3. Components: error aggregator, cache, monitor, task pool, stream processor, balancer
//  4. Supervisor tree: core, stream and api layers
//
// SIGINT and SIGTERM cancel the tree. The task pool is given
// supervisor.shutdown_timeout to drain before running tasks are canceled.
//
// When a config file is in use, edits to logging.level apply without a restart.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/perfcore/internal/config"
	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Bool("server_enabled", cfg.Server.Enabled).
		Int("workers", cfg.Tasks.Workers).
		Msg("Starting perfcore")

	watchLogLevel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comps := newComponents(cfg)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}
	comps.register(tree, cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Perfcore stopped")
}

// watchLogLevel reloads the configuration on file change and applies the new log level.
func watchLogLevel() {
	path := config.FindConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		next, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid configuration change")
			return
		}
		logging.SetLevelString(next.Logging.Level)
		logging.Info().Str("level", next.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}
