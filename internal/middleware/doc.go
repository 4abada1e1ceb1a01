// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

/*
Package middleware provides the HTTP middleware used by the diagnostics
router. Every middleware has the chi signature func(http.Handler) http.Handler.

  - RequestID: assigns X-Request-ID and seeds the logging context
  - PrometheusMetrics: request count, duration and in-flight gauge by route pattern
  - Compression: pooled gzip for clients that accept it

Typical chain:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.Compression)
*/
package middleware
