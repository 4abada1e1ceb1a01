// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package cache

import (
	"context"
	"time"
)

// Sweeper periodically removes expired entries from a Store.
// It implements suture.Service.
type Sweeper struct {
	store    *Store
	interval time.Duration
}

// NewSweeper creates a sweeper running every interval (one minute when interval <= 0).
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{store: store, interval: interval}
}

// Serve runs the sweep loop until ctx is canceled.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := s.store.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if removed := s.store.CleanupExpired(); removed > 0 {
				s.store.log.Debug().Int("removed", removed).Msg("Swept expired cache entries")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Sweeper) String() string {
	return "cache-sweeper-" + s.store.name
}
