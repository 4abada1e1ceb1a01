// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package cache

import "time"

// Cacher is the cache surface consumed by request paths and the diagnostics router.
type Cacher interface {
	// Get returns the value and true if the key is present and not expired.
	Get(key string) (interface{}, bool)

	// Set stores a value with the default TTL.
	Set(key string, value interface{})

	// SetWithTTL stores a value with an explicit TTL.
	SetWithTTL(key string, value interface{}, ttl time.Duration)

	// Invalidate removes keys containing pattern, or every key when pattern is empty.
	Invalidate(pattern string) int

	// Stats returns a snapshot of cache counters.
	Stats() Stats
}

var _ Cacher = (*Store)(nil)
