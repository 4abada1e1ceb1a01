// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

// Package errtrack aggregates failures reported by other components into a
// bounded, append-only buffer with a per-type frequency table.
//
// Logging is a terminal sink: Log never panics, never returns an error, and
// accepts a nil error. Components depend on the narrow Sink interface rather
// than on Aggregator directly.
//
// The error type of a record is taken from an ErrorType() string method when
// any error in the wrap chain implements one; otherwise it is the dynamic Go
// type name without package or pointer, looking through fmt wrappers:
//
//	errors.New("x")                             -> "errorString"
//	fmt.Errorf("load: %w", &os.PathError{...})  -> "PathError"
package errtrack
