// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration.
type Config struct {
	Cache      CacheConfig      `koanf:"cache"`
	Monitor    MonitorConfig    `koanf:"monitor"`
	Errors     ErrorsConfig     `koanf:"errors"`
	Tasks      TasksConfig      `koanf:"tasks"`
	Stream     StreamConfig     `koanf:"stream"`
	Balancer   BalancerConfig   `koanf:"balancer"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// CacheConfig configures the in-memory TTL/LRU store.
type CacheConfig struct {
	MaxItems      int           `koanf:"max_items" validate:"min=1"`
	DefaultTTL    time.Duration `koanf:"default_ttl" validate:"gt=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gte=0"` // 0 disables the sweeper
}

// ThresholdsConfig holds the alert thresholds of the metrics recorder.
type ThresholdsConfig struct {
	ResponseTime time.Duration `koanf:"response_time" validate:"gt=0"`
	ErrorRate    float64       `koanf:"error_rate" validate:"gte=0,lte=1"`
	CacheHitRate float64       `koanf:"cache_hit_rate" validate:"gte=0,lte=1"`
}

// MonitorConfig configures request metric retention and alerting.
type MonitorConfig struct {
	MaxMetrics int              `koanf:"max_metrics" validate:"min=1"`
	Thresholds ThresholdsConfig `koanf:"thresholds"`
	AlertRate  float64          `koanf:"alert_rate" validate:"gt=0"` // alerts per second
	AlertBurst int              `koanf:"alert_burst" validate:"min=1"`
}

// ErrorsConfig configures the error aggregator.
type ErrorsConfig struct {
	MaxErrors int `koanf:"max_errors" validate:"min=1"`
}

// TasksConfig configures the background task pool.
type TasksConfig struct {
	Workers       int           `koanf:"workers" validate:"min=1,max=1024"`
	Retention     time.Duration `koanf:"retention" validate:"gte=0"` // 0 keeps finished tasks forever
	PruneInterval time.Duration `koanf:"prune_interval" validate:"gte=0"`
}

// StreamConfig configures buffered stream processing.
type StreamConfig struct {
	BufferSize   int           `koanf:"buffer_size" validate:"min=1"`
	TickInterval time.Duration `koanf:"tick_interval" validate:"gt=0"`
	BatchSize    int           `koanf:"batch_size" validate:"min=1"`
}

// BalancerConfig configures instance selection and health tracking.
type BalancerConfig struct {
	SampleSize       int           `koanf:"sample_size" validate:"min=1"`
	FailureThreshold int           `koanf:"failure_threshold" validate:"min=1"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// ServerConfig configures the diagnostics HTTP server.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"` // 0 disables rate limiting
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"loglevel"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig mirrors suture's failure handling knobs.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gte=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gte=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gte=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}
