// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

// Package balancer keeps a registry of service instances and selects one per
// call.
//
// Selection only considers healthy instances whose circuit breaker is not
// open. Three algorithms are built in:
//
//	round_robin        per-service atomic counter over the healthy list
//	weighted           uniform draw in [1, total weight]
//	least_connections  fewest in-flight calls made through Do, first wins ties
//
// Custom algorithms are added with RegisterAlgorithm. An unknown algorithm
// name selects the first healthy instance.
//
// Do wraps a call with connection counting, the instance's gobreaker circuit
// breaker and response time recording:
//
//	err := lb.Do(ctx, "search", balancer.LeastConnections, func(ctx context.Context, inst balancer.Instance) error {
//		return client.Query(ctx, inst.Endpoint, q)
//	})
package balancer
