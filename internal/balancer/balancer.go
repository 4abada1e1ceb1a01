// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package balancer

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/perfcore/internal/errtrack"
	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/metrics"
)

// Defaults applied to zero Config fields.
const (
	DefaultSampleSize       = 100
	DefaultFailureThreshold = 3
	DefaultBreakerTimeout   = 30 * time.Second
)

// Status is an instance's registry health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Instance is a snapshot of one registered replica.
type Instance struct {
	Service      string    `json:"service"`
	ID           string    `json:"instance_id"`
	Endpoint     string    `json:"endpoint"`
	Weight       int       `json:"weight"`
	Status       Status    `json:"status"`
	Connections  int64     `json:"connections"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Config configures a Balancer.
type Config struct {
	// SampleSize bounds stored response times per instance. Default: 100
	SampleSize int

	// FailureThreshold is the consecutive failure count that marks an
	// instance unhealthy (ReportHealth) or opens its breaker (Do). Default: 3
	FailureThreshold int

	// BreakerTimeout is how long an open breaker waits before half-open. Default: 30s
	BreakerTimeout time.Duration

	// Random returns a uniform int in [0, n). Default: math/rand/v2
	Random func(n int) int

	// Clock is the time source. Default: real clock
	Clock clockwork.Clock

	// Errors receives failures of routed calls. Optional.
	Errors errtrack.Sink
}

type instance struct {
	Instance
	conns    atomic.Int64
	samples  []time.Duration
	failures int
	breaker  *gobreaker.CircuitBreaker[interface{}]
}

func (in *instance) snapshot() Instance {
	s := in.Instance
	s.Connections = in.conns.Load()
	return s
}

// eligible must be called with the read lock held.
func (in *instance) eligible() bool {
	return in.Status == StatusHealthy && in.breaker.State() != gobreaker.StateOpen
}

type service struct {
	instances []*instance
	requests  atomic.Int64
}

// Balancer is a thread-safe instance registry with pluggable selection.
type Balancer struct {
	mu       sync.RWMutex
	services map[string]*service

	selMu     sync.RWMutex
	selectors map[string]Selector

	sampleSize       int
	failureThreshold int
	breakerTimeout   time.Duration
	clock            clockwork.Clock
	errors           errtrack.Sink
	log              zerolog.Logger
}

// New creates a Balancer with the built-in algorithms registered.
func New(cfg Config) *Balancer {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultSampleSize
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = DefaultBreakerTimeout
	}
	if cfg.Random == nil {
		cfg.Random = rand.IntN
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Balancer{
		services: make(map[string]*service),
		selectors: map[string]Selector{
			RoundRobin:       &roundRobin{},
			Weighted:         weighted{random: cfg.Random},
			LeastConnections: leastConnections{},
		},
		sampleSize:       cfg.SampleSize,
		failureThreshold: cfg.FailureThreshold,
		breakerTimeout:   cfg.BreakerTimeout,
		clock:            cfg.Clock,
		errors:           cfg.Errors,
		log:              logging.WithComponent("balancer"),
	}
}

// RegisterAlgorithm adds or replaces a named selection algorithm.
func (b *Balancer) RegisterAlgorithm(name string, s Selector) {
	b.selMu.Lock()
	defer b.selMu.Unlock()
	b.selectors[name] = s
}

func (b *Balancer) selector(name string) (Selector, bool) {
	b.selMu.RLock()
	defer b.selMu.RUnlock()
	s, ok := b.selectors[name]
	return s, ok
}

// MaxWeight is the largest stored instance weight.
const MaxWeight = math.MaxInt32

// Register adds a healthy instance to service. Registering an existing
// instance ID updates its endpoint and weight in place. Weights are clamped
// to [1, MaxWeight].
func (b *Balancer) Register(serviceName, instanceID, endpoint string, weight int) {
	weight = min(max(weight, 1), MaxWeight)

	b.mu.Lock()
	defer b.mu.Unlock()

	svc, ok := b.services[serviceName]
	if !ok {
		svc = &service{}
		b.services[serviceName] = svc
	}

	for _, in := range svc.instances {
		if in.ID == instanceID {
			in.Endpoint = endpoint
			in.Weight = weight
			b.log.Debug().Str("service", serviceName).Str("instance_id", instanceID).Msg("Instance re-registered")
			return
		}
	}

	svc.instances = append(svc.instances, &instance{
		Instance: Instance{
			Service:      serviceName,
			ID:           instanceID,
			Endpoint:     endpoint,
			Weight:       weight,
			Status:       StatusHealthy,
			RegisteredAt: b.clock.Now(),
		},
		breaker: b.newBreaker(serviceName, instanceID),
	})
	metrics.RecordCircuitBreakerState(serviceName, instanceID, "closed")
	b.log.Info().Str("service", serviceName).Str("instance_id", instanceID).Str("endpoint", endpoint).
		Int("weight", weight).Msg("Instance registered")
}

// Deregister removes an instance. Services without instances are removed.
func (b *Balancer) Deregister(serviceName, instanceID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	svc, ok := b.services[serviceName]
	if !ok {
		return false
	}
	for i, in := range svc.instances {
		if in.ID != instanceID {
			continue
		}
		svc.instances = append(svc.instances[:i], svc.instances[i+1:]...)
		if len(svc.instances) == 0 {
			delete(b.services, serviceName)
		}
		metrics.CircuitBreakerState.DeleteLabelValues(serviceName, instanceID)
		return true
	}
	return false
}

// SelectInstance picks a healthy instance of serviceName. ok is false for an
// unknown service or when no instance is healthy.
func (b *Balancer) SelectInstance(serviceName, algorithm string) (Instance, bool) {
	_, snap, ok := b.pick(serviceName, algorithm)
	return snap, ok
}

func (b *Balancer) pick(serviceName, algorithm string) (*instance, Instance, bool) {
	sel, known := b.selector(algorithm)
	label := algorithm
	if !known {
		label = "default"
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	svc, ok := b.services[serviceName]
	if !ok {
		metrics.RecordSelection(serviceName, label, false)
		return nil, Instance{}, false
	}

	candidates := make([]*instance, 0, len(svc.instances))
	for _, in := range svc.instances {
		if in.eligible() {
			candidates = append(candidates, in)
		}
	}
	if len(candidates) == 0 {
		metrics.RecordSelection(serviceName, label, false)
		return nil, Instance{}, false
	}

	healthy := make([]Instance, len(candidates))
	for i, in := range candidates {
		healthy[i] = in.snapshot()
	}

	idx := 0
	if known {
		idx = sel.Select(serviceName, healthy)
		if idx < 0 || idx >= len(candidates) {
			idx = 0
		}
	}

	svc.requests.Add(1)
	metrics.RecordSelection(serviceName, label, true)
	return candidates[idx], healthy[idx], true
}

func (b *Balancer) lookup(serviceName, instanceID string) *instance {
	svc, ok := b.services[serviceName]
	if !ok {
		return nil
	}
	for _, in := range svc.instances {
		if in.ID == instanceID {
			return in
		}
	}
	return nil
}

// RecordResponseTime stores a response time sample, keeping the most recent
// SampleSize. It returns false for unknown instances.
func (b *Balancer) RecordResponseTime(serviceName, instanceID string, d time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	in := b.lookup(serviceName, instanceID)
	if in == nil {
		return false
	}
	in.samples = append(in.samples, d)
	if len(in.samples) > b.sampleSize {
		in.samples = in.samples[len(in.samples)-b.sampleSize:]
	}
	metrics.BalancerResponseTime.WithLabelValues(serviceName).Observe(d.Seconds())
	return true
}

// ResponseTimes returns a copy of the stored samples, oldest first.
func (b *Balancer) ResponseTimes(serviceName, instanceID string) []time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	in := b.lookup(serviceName, instanceID)
	if in == nil {
		return nil
	}
	return append([]time.Duration(nil), in.samples...)
}

// ReportHealth records a health check result. FailureThreshold consecutive
// failures mark the instance unhealthy; a success marks it healthy again.
func (b *Balancer) ReportHealth(serviceName, instanceID string, ok bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	in := b.lookup(serviceName, instanceID)
	if in == nil {
		return false
	}

	if ok {
		if in.Status != StatusHealthy {
			b.log.Info().Str("service", serviceName).Str("instance_id", instanceID).Msg("Instance recovered")
		}
		in.failures = 0
		in.Status = StatusHealthy
		return true
	}

	in.failures++
	if in.failures >= b.failureThreshold && in.Status == StatusHealthy {
		in.Status = StatusUnhealthy
		b.log.Warn().Str("service", serviceName).Str("instance_id", instanceID).
			Int("consecutive_failures", in.failures).Msg("Instance marked unhealthy")
	}
	return true
}

// SetStatus overrides an instance's status.
func (b *Balancer) SetStatus(serviceName, instanceID string, status Status) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	in := b.lookup(serviceName, instanceID)
	if in == nil {
		return false
	}
	in.Status = status
	if status == StatusHealthy {
		in.failures = 0
	}
	return true
}

// InstanceStats describes one instance in Stats.
type InstanceStats struct {
	Instance
	Breaker             string  `json:"circuit_breaker"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	Samples             int     `json:"response_time_samples"`
	AvgResponseTime     float64 `json:"avg_response_time"`
}

// ServiceStats describes one service in Stats.
type ServiceStats struct {
	TotalInstances   int             `json:"total_instances"`
	HealthyInstances int             `json:"healthy_instances"`
	RequestCount     int64           `json:"request_count"`
	Instances        []InstanceStats `json:"instances"`
}

// Stats is a registry snapshot.
type Stats struct {
	TotalServices    int                     `json:"total_services"`
	TotalInstances   int                     `json:"total_instances"`
	HealthyInstances int                     `json:"healthy_instances"`
	Services         map[string]ServiceStats `json:"service_stats"`
}

// Stats returns registry totals and per-service detail. An instance counts as
// healthy when it is eligible for selection.
func (b *Balancer) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Stats{
		TotalServices: len(b.services),
		Services:      make(map[string]ServiceStats, len(b.services)),
	}
	for name, svc := range b.services {
		ss := ServiceStats{
			TotalInstances: len(svc.instances),
			RequestCount:   svc.requests.Load(),
			Instances:      make([]InstanceStats, 0, len(svc.instances)),
		}
		for _, in := range svc.instances {
			if in.eligible() {
				ss.HealthyInstances++
			}
			ss.Instances = append(ss.Instances, InstanceStats{
				Instance:            in.snapshot(),
				Breaker:             stateToString(in.breaker.State()),
				ConsecutiveFailures: in.failures,
				Samples:             len(in.samples),
				AvgResponseTime:     avgSeconds(in.samples),
			})
		}
		st.TotalInstances += ss.TotalInstances
		st.HealthyInstances += ss.HealthyInstances
		st.Services[name] = ss
	}
	return st
}

// Services returns the registered service names, sorted.
func (b *Balancer) Services() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.services))
	for name := range b.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func avgSeconds(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	avg := sum.Seconds() / float64(len(samples))
	return math.Round(avg*1000) / 1000
}
