// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package config loads and validates perfcore configuration.

# Configuration Sources

Configuration is layered with koanf v2, later layers overriding earlier ones:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: $CONFIG_PATH, ./config.yaml, ./config.yml,
    /etc/perfcore/config.yaml
 3. Environment variables (explicit mapping table, unknown variables ignored)

# Environment Variables

Cache:
  - CACHE_MAX_ITEMS: Capacity before LRU eviction (default: 1000)
  - CACHE_DEFAULT_TTL: TTL applied by Set (default: 300s)
  - CACHE_SWEEP_INTERVAL: Background expiry sweep, 0 disables (default: 1m)

Monitor:
  - MONITOR_MAX_METRICS: Retained request metrics (default: 10000)
  - MONITOR_ALERT_RESPONSE_TIME: Slow response threshold (default: 2s)
  - MONITOR_ALERT_ERROR_RATE: Error rate threshold (default: 0.05)
  - MONITOR_ALERT_CACHE_HIT_RATE: Minimum cache hit rate (default: 0.8)
  - MONITOR_ALERT_RATE / MONITOR_ALERT_BURST: Alert dispatch budget (default: 10/s, 20)

Errors:
  - ERRORS_MAX: Retained error records (default: 5000)

Tasks:
  - TASK_WORKERS: Concurrent task limit (default: 10)
  - TASK_RETENTION: Age after which finished tasks are pruned (default: 1h)
  - TASK_PRUNE_INTERVAL: How often the janitor runs (default: 5m)

Stream:
  - STREAM_BUFFER_SIZE: Per-stream buffer capacity (default: 1000)
  - STREAM_TICK_INTERVAL: Drain cadence (default: 1s)
  - STREAM_BATCH_SIZE: Records drained per tick (default: 100)

Balancer:
  - BALANCER_SAMPLE_SIZE: Response time samples per instance (default: 100)
  - BALANCER_FAILURE_THRESHOLD: Consecutive failures before unhealthy (default: 3)
  - BALANCER_BREAKER_TIMEOUT: Open circuit duration (default: 30s)

Server:
  - HTTP_ENABLED, HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT
  - HTTP_RATE_LIMIT, HTTP_RATE_LIMIT_WINDOW (default: 100 per 1m per IP)

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER (default: info, json, false)

Supervisor:
  - SUPERVISOR_FAILURE_THRESHOLD, SUPERVISOR_FAILURE_DECAY,
    SUPERVISOR_FAILURE_BACKOFF, SUPERVISOR_SHUTDOWN_TIMEOUT

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
*/
package config
