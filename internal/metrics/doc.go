// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package metrics provides the Prometheus collectors exported by perfcore.

Collectors are registered once on the default registry through promauto and
are exposed by the diagnostics router at /metrics:

	curl http://127.0.0.1:9464/metrics

# Metric Families

  - perfcore_cache_*     hits, misses, sets, evictions, expirations, entries (label: store)
  - perfcore_monitor_*   recorded requests, alerts emitted, queued, dropped and suppressed
  - perfcore_errors_*    logged errors by type
  - perfcore_tasks_*     submitted, finished by outcome, running
  - perfcore_stream_*    records pushed, dropped, processed, enrichment errors, active streams
  - perfcore_balancer_*  selections, instance response time, circuit breaker state
  - perfcore_http_*      diagnostics API requests and latency

Components call the Record helpers rather than touching the collectors
directly, so label cardinality stays under this package's control.
*/
package metrics
