// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/perfcore/internal/validation"
)

// Validate checks field constraints and then cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateTasks(); err != nil {
		return err
	}

	return c.validateServer()
}

// validateTasks requires a janitor cadence whenever retention is enabled.
func (c *Config) validateTasks() error {
	if c.Tasks.Retention > 0 && c.Tasks.PruneInterval == 0 {
		return fmt.Errorf("tasks.prune_interval must be set when tasks.retention is %s", c.Tasks.Retention)
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled || c.Server.RateLimit == 0 {
		return nil
	}
	if c.Server.RateLimitWindow < time.Second {
		return fmt.Errorf("server.rate_limit_window must be at least 1s, got %s", c.Server.RateLimitWindow)
	}
	return nil
}
