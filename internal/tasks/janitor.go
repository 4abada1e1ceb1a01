// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package tasks

import (
	"context"
	"time"
)

// Janitor prunes finished tasks older than a retention period.
// It implements suture.Service.
type Janitor struct {
	tracker   *Tracker
	retention time.Duration
	interval  time.Duration
}

// NewJanitor creates a janitor. Defaults: retention 1h, interval 5m.
func NewJanitor(tracker *Tracker, retention, interval time.Duration) *Janitor {
	if retention <= 0 {
		retention = time.Hour
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Janitor{tracker: tracker, retention: retention, interval: interval}
}

// Serve prunes on every tick until ctx is canceled.
func (j *Janitor) Serve(ctx context.Context) error {
	ticker := j.tracker.clock.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if n := j.tracker.Prune(j.retention); n > 0 {
				j.tracker.log.Debug().Int("pruned", n).Msg("Pruned finished tasks")
			}
		}
	}
}

func (j *Janitor) String() string {
	return "tasks-janitor"
}
