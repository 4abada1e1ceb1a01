// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package cache

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// GenerateKey builds a stable cache key from a prefix and parameters.
// Map keys are serialized in sorted order, so equal parameter sets always
// produce the same key.
func GenerateKey(prefix string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", prefix, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", prefix, hash[:16])
}

// GetOrCompute returns the cached value for key, or runs fn on a miss and
// caches its result for ttl (DefaultTTL when ttl <= 0). hit reports whether
// the value came from the store. Errors from fn are returned and never cached.
//
// Concurrent misses for the same key share a single fn call.
func (s *Store) GetOrCompute(key string, ttl time.Duration, fn func() (interface{}, error)) (value interface{}, hit bool, err error) {
	if v, ok := s.Get(key); ok {
		return v, true, nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		result, err := fn()
		if err != nil {
			return nil, err
		}
		s.SetWithTTL(key, result, ttl)
		return result, nil
	})
	if err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("Compute failed, result not cached")
		return nil, false, err
	}
	return v, false, nil
}

// approxSize sums the JSON-encoded size of each value.
// Values that cannot be encoded count as zero.
func approxSize(values []interface{}) int64 {
	var total int64
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		total += int64(len(data))
	}
	return total
}
