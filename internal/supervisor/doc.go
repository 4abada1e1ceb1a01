// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package supervisor runs perfcore's long-lived services under a suture v4 tree.

	RootSupervisor ("perfcore")
	├── CoreSupervisor ("core-layer")
	│   ├── cache-sweeper-<name>
	│   ├── tasks-janitor
	│   ├── monitor-alerts
	│   └── task-tracker (shutdown hook)
	├── StreamSupervisor ("stream-layer")
	│   └── stream-processor
	└── APISupervisor ("api-layer")
	    └── http-server

A service that returns an error is restarted with suture's backoff. Failure
counts are kept per layer, so a crashing HTTP listener never restarts the
stream processor.

Events are logged through sutureslog onto the zerolog-backed slog handler:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    FailureDecay:     cfg.Supervisor.FailureDecay,
	    FailureBackoff:   cfg.Supervisor.FailureBackoff,
	    ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddCoreService(cache.NewSweeper(store, cfg.Cache.SweepInterval))
	tree.AddStreamService(processor)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))
	err = tree.Serve(ctx)

After Serve returns, UnstoppedServiceReport lists services that ignored the
shutdown timeout.
*/
package supervisor
