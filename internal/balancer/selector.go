// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package balancer

import (
	"sync"
	"sync/atomic"
)

// Built-in algorithm names.
const (
	RoundRobin       = "round_robin"
	Weighted         = "weighted"
	LeastConnections = "least_connections"
)

// Selector picks one of the healthy instances of a service and returns its
// index. healthy is never empty and is in registration order.
type Selector interface {
	Select(service string, healthy []Instance) int
}

// SelectorFunc adapts a function to Selector.
type SelectorFunc func(service string, healthy []Instance) int

// Select calls f.
func (f SelectorFunc) Select(service string, healthy []Instance) int {
	return f(service, healthy)
}

type roundRobin struct {
	counters sync.Map // service -> *atomic.Uint64
}

func (rr *roundRobin) Select(service string, healthy []Instance) int {
	c, ok := rr.counters.Load(service)
	if !ok {
		c, _ = rr.counters.LoadOrStore(service, new(atomic.Uint64))
	}
	n := c.(*atomic.Uint64).Add(1) - 1
	return int(n % uint64(len(healthy)))
}

type weighted struct {
	random func(n int) int
}

func (w weighted) Select(_ string, healthy []Instance) int {
	total := 0
	for i := range healthy {
		total += healthy[i].Weight
	}
	if total <= 0 {
		return 0
	}
	draw := w.random(total) + 1

	acc := 0
	for i := range healthy {
		acc += healthy[i].Weight
		if draw <= acc {
			return i
		}
	}
	return 0
}

type leastConnections struct{}

func (leastConnections) Select(_ string, healthy []Instance) int {
	best := 0
	for i := 1; i < len(healthy); i++ {
		if healthy[i].Connections < healthy[best].Connections {
			best = i
		}
	}
	return best
}
