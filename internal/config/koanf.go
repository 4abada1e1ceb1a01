// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/perfcore/config.yaml",
	"/etc/perfcore/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxItems:      1000,
			DefaultTTL:    300 * time.Second,
			SweepInterval: time.Minute,
		},
		Monitor: MonitorConfig{
			MaxMetrics: 10000,
			Thresholds: ThresholdsConfig{
				ResponseTime: 2 * time.Second,
				ErrorRate:    0.05,
				CacheHitRate: 0.8,
			},
			AlertRate:  10,
			AlertBurst: 20,
		},
		Errors: ErrorsConfig{
			MaxErrors: 5000,
		},
		Tasks: TasksConfig{
			Workers:       10,
			Retention:     time.Hour,
			PruneInterval: 5 * time.Minute,
		},
		Stream: StreamConfig{
			BufferSize:   1000,
			TickInterval: time.Second,
			BatchSize:    100,
		},
		Balancer: BalancerConfig{
			SampleSize:       100,
			FailureThreshold: 3,
			BreakerTimeout:   30 * time.Second,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			Port:            9464,
			Timeout:         30 * time.Second,
			RateLimit:       100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		// suture's own defaults
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables (ENV > file > defaults), then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := FindConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FindConfigFile returns the first existing config file, or "".
func FindConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Variables not listed here are ignored.
var envMappings = map[string]string{
	"cache_max_items":      "cache.max_items",
	"cache_default_ttl":    "cache.default_ttl",
	"cache_sweep_interval": "cache.sweep_interval",

	"monitor_max_metrics":          "monitor.max_metrics",
	"monitor_alert_response_time":  "monitor.thresholds.response_time",
	"monitor_alert_error_rate":     "monitor.thresholds.error_rate",
	"monitor_alert_cache_hit_rate": "monitor.thresholds.cache_hit_rate",
	"monitor_alert_rate":           "monitor.alert_rate",
	"monitor_alert_burst":          "monitor.alert_burst",

	"errors_max": "errors.max_errors",

	"task_workers":        "tasks.workers",
	"task_retention":      "tasks.retention",
	"task_prune_interval": "tasks.prune_interval",

	"stream_buffer_size":   "stream.buffer_size",
	"stream_tick_interval": "stream.tick_interval",
	"stream_batch_size":    "stream.batch_size",

	"balancer_sample_size":       "balancer.sample_size",
	"balancer_failure_threshold": "balancer.failure_threshold",
	"balancer_breaker_timeout":   "balancer.breaker_timeout",

	"http_enabled":           "server.enabled",
	"http_host":              "server.host",
	"http_port":              "server.port",
	"http_timeout":           "server.timeout",
	"http_rate_limit":        "server.rate_limit",
	"http_rate_limit_window": "server.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped names return "" so koanf skips them.
//
// Examples:
//   - CACHE_MAX_ITEMS -> cache.max_items
//   - MONITOR_ALERT_ERROR_RATE -> monitor.thresholds.error_rate
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// WatchConfigFile invokes callback whenever the file at path changes.
// The caller is responsible for synchronizing access to any configuration it
// reloads from the callback.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
