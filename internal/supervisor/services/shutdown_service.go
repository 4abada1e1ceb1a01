// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package services

import (
	"context"
	"fmt"
	"time"
)

// ShutdownFunc stops a component, honoring ctx's deadline.
type ShutdownFunc func(ctx context.Context) error

// ShutdownService idles until canceled, then runs its ShutdownFunc once.
type ShutdownService struct {
	name     string
	shutdown ShutdownFunc
	timeout  time.Duration
}

// NewShutdownService wraps fn. A non-positive timeout means DefaultShutdownTimeout.
func NewShutdownService(name string, fn ShutdownFunc, timeout time.Duration) *ShutdownService {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownService{name: name, shutdown: fn, timeout: timeout}
}

// Serve implements suture.Service.
func (s *ShutdownService) Serve(ctx context.Context) error {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", s.name, err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer.
func (s *ShutdownService) String() string {
	return s.name
}
