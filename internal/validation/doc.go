// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata, so building one per call would waste work. Field names in error
// messages come from the koanf tag (then json, then the Go name), which makes
// configuration failures read like the YAML the operator wrote:
//
//	cache.max_items must be at least 1
//
// Custom tags:
//   - loglevel: one of trace, debug, info, warn, error, fatal, panic, disabled
//   - window: a duration string between 1m and 720h (used by diagnostics queries)
package validation
