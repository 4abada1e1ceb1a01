// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package balancer

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/perfcore/internal/metrics"
)

var (
	// ErrNoInstance is returned by Do when no instance can be selected.
	ErrNoInstance = errors.New("no healthy instance")

	// ErrRejected is returned by Do when the selected instance's breaker
	// refuses the call.
	ErrRejected = errors.New("circuit breaker rejected call")
)

// CallFunc is a call routed to one instance.
type CallFunc func(ctx context.Context, inst Instance) error

func (b *Balancer) newBreaker(serviceName, instanceID string) *gobreaker.CircuitBreaker[interface{}] {
	threshold := uint32(b.failureThreshold)

	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        serviceName + "/" + instanceID,
		MaxRequests: 1,
		Timeout:     b.breakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},

		// Caller cancellation says nothing about the instance.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			b.log.Info().Str("breaker", name).Str("from", stateToString(from)).
				Str("to", stateToString(to)).Msg("Circuit breaker state transition")
			metrics.RecordCircuitBreakerState(serviceName, instanceID, stateToString(to))
		},
	})
}

// Do selects an instance and runs fn against it through the instance's
// circuit breaker. The instance's connection count covers the call, and the
// call's duration is recorded as a response time sample unless the breaker
// rejected it. Panics in fn are returned as errors.
func (b *Balancer) Do(ctx context.Context, serviceName, algorithm string, fn CallFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, snap, ok := b.pick(serviceName, algorithm)
	if !ok {
		return fmt.Errorf("%w for service %s", ErrNoInstance, serviceName)
	}

	in.conns.Add(1)
	defer in.conns.Add(-1)
	snap.Connections++

	start := b.clock.Now()
	_, err := in.breaker.Execute(func() (interface{}, error) {
		return nil, safeCall(ctx, fn, snap)
	})
	elapsed := b.clock.Since(start)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(serviceName, snap.ID, "rejected").Inc()
		return fmt.Errorf("%w: %s/%s: %w", ErrRejected, serviceName, snap.ID, err)

	case err != nil:
		metrics.CircuitBreakerRequests.WithLabelValues(serviceName, snap.ID, "failure").Inc()
		b.RecordResponseTime(serviceName, snap.ID, elapsed)
		b.log.Warn().Err(err).Str("service", serviceName).Str("instance_id", snap.ID).Msg("Routed call failed")
		if b.errors != nil {
			b.errors.Log(err, map[string]interface{}{
				"component":   "balancer",
				"service":     serviceName,
				"instance_id": snap.ID,
				"endpoint":    snap.Endpoint,
			})
		}
		return err

	default:
		metrics.CircuitBreakerRequests.WithLabelValues(serviceName, snap.ID, "success").Inc()
		b.RecordResponseTime(serviceName, snap.ID, elapsed)
		return nil
	}
}

func safeCall(ctx context.Context, fn CallFunc, inst Instance) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, inst)
}

// stateToString converts circuit breaker state to string for logging and metrics
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
