// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package cache provides a bounded in-memory key/value store with TTL expiry and
least-recently-used eviction.

# Overview

Store keeps entries in a map for O(1) lookup and a doubly-linked recency list
(head = most recently accessed) for O(1) eviction:

  - Get moves a live entry to the front and counts a hit.
  - Get on an absent key, or on a key whose expiry is not after now, counts a
    miss; an expired entry is removed at that moment.
  - Set at capacity evicts the tail before inserting, so the store never holds
    more than MaxItems entries, not even transiently. Overwriting an existing
    key never evicts.

Read-time validity is the only correctness mechanism for TTL. The optional
Sweeper service only reclaims memory held by expired entries nobody reads.

# Usage

	store := cache.New(cache.Config{MaxItems: 1000, DefaultTTL: 5 * time.Minute})

	key := cache.GenerateKey("persona_insights", map[string]interface{}{"persona": 42})
	value, hit, err := store.GetOrCompute(key, time.Minute, func() (interface{}, error) {
	    return loadInsights(42)
	})

	store.Invalidate("persona_insights") // drop every key containing the substring
	store.Invalidate("")                 // clear the whole store

# Thread Safety

All Store methods are safe for concurrent use. Concurrent GetOrCompute misses
for the same key run the compute function once and share its result.
*/
package cache
