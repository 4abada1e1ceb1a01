// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package diag serves the read-mostly diagnostics API over HTTP.

Routes:

	GET    /healthz                             aggregated health report
	GET    /metrics                             Prometheus exposition
	GET    /debug/cache                         cache statistics
	DELETE /debug/cache?pattern=...             invalidate matching keys
	GET    /debug/performance?window=1h         request summary and grade
	GET    /debug/performance/endpoints/*       per-endpoint summary
	GET    /debug/errors?window=1h&limit=20     error summary and recent records
	GET    /debug/errors/{id}                   one error record
	GET    /debug/tasks                         task counts by state
	GET    /debug/tasks/{id}                    one task status
	DELETE /debug/tasks/{id}                    cancel a task that has not started
	GET    /debug/streams                       all stream statuses
	GET    /debug/streams/{id}                  one stream status
	GET    /debug/balancer                      balancer registry statistics

Every route except /metrics is wrapped in a JSON envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"...","request_id":"..."}}

Windows are Go durations between 1m and 720h. The default is 1h.

Middleware order is request ID, panic recovery, Prometheus request metrics,
performance tracking, then the per-IP rate limit. Gzip applies to the JSON
routes only; promhttp negotiates its own compression.
*/
package diag
