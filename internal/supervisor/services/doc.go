// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package services adapts perfcore components whose lifecycle is not already
a suture.Service.

Most components implement Serve(ctx) and String() themselves (the cache
sweeper, the task janitor, the alert dispatcher and the stream processor).
The wrappers here cover the rest:

HTTPServerService runs *http.Server.ListenAndServe and calls Shutdown with a
bounded timeout when the supervisor cancels it:

	server := &http.Server{Addr: cfg.Server.Addr(), Handler: router}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.Timeout))

ShutdownService blocks until canceled, then runs a shutdown function such as
tasks.Tracker.Shutdown with its own deadline:

	tree.AddCoreService(services.NewShutdownService("task-tracker", tracker.Shutdown, cfg.Supervisor.ShutdownTimeout))

Both return ctx.Err() on a clean stop so suture does not count it as a failure.
*/
package services
