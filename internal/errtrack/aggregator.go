// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package errtrack

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/metrics"
)

// Defaults applied to zero Config fields.
const (
	DefaultMaxErrors = 5000
	DefaultWindow    = 24 * time.Hour
)

// Sink receives failures from tasks, streams and routed calls.
type Sink interface {
	Log(err error, context map[string]interface{}) string
}

// Config configures an Aggregator.
type Config struct {
	// MaxErrors bounds the record buffer. Default: 5000
	MaxErrors int

	// Clock is the time source. Default: real clock
	Clock clockwork.Clock
}

// Record is one logged error. Records are immutable once stored.
type Record struct {
	ID         string                 `json:"error_id"`
	Type       string                 `json:"error_type"`
	Message    string                 `json:"error_message"`
	Timestamp  time.Time              `json:"timestamp"`
	Context    map[string]interface{} `json:"context"`
	StackTrace string                 `json:"stack_trace,omitempty"`
}

// Summary describes the errors logged within a window.
type Summary struct {
	PeriodHours      float64        `json:"period_hours"`
	TotalErrors      int            `json:"total_errors"`
	ErrorTypes       map[string]int `json:"error_types"`
	ErrorRatePerHour float64        `json:"error_rate_per_hour"`
	// MostCommon is empty when no error falls in the window.
	MostCommon string `json:"most_common_error,omitempty"`
}

// Aggregator is a thread-safe bounded error buffer.
type Aggregator struct {
	mu        sync.RWMutex
	records   []Record
	maxErrors int
	counts    map[string]int64 // all-time, survives buffer truncation
	seq       uint64

	clock clockwork.Clock
	log   zerolog.Logger
}

var _ Sink = (*Aggregator)(nil)

// New creates an Aggregator.
func New(cfg Config) *Aggregator {
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = DefaultMaxErrors
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &Aggregator{
		records:   make([]Record, 0, min(cfg.MaxErrors, 1024)),
		maxErrors: cfg.MaxErrors,
		counts:    make(map[string]int64),
		clock:     cfg.Clock,
		log:       logging.WithComponent("errtrack"),
	}
}

// Log stores err with its context and returns the generated record ID.
func (a *Aggregator) Log(err error, context map[string]interface{}) string {
	errType, message := describe(err)

	ctx := make(map[string]interface{}, len(context))
	for k, v := range context {
		ctx[k] = v
	}
	stack := callerStack(2)

	a.mu.Lock()
	now := a.clock.Now()
	a.seq++
	id := recordID(message, now, a.seq)

	a.records = append(a.records, Record{
		ID:         id,
		Type:       errType,
		Message:    message,
		Timestamp:  now,
		Context:    ctx,
		StackTrace: stack,
	})
	if len(a.records) > a.maxErrors {
		a.records = a.records[len(a.records)-a.maxErrors:]
	}
	a.counts[errType]++
	a.mu.Unlock()

	metrics.ErrorsLogged.WithLabelValues(errType).Inc()
	a.log.Error().
		Str("error_id", id).
		Str("error_type", errType).
		Str("error_message", message).
		Fields(ctx).
		Msg("Error logged")

	return id
}

// recordID returns the first 8 hex characters of sha256(message+nanos+seq).
func recordID(message string, ts time.Time, seq uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d%d", message, ts.UnixNano(), seq)))
	return hex.EncodeToString(sum[:4])
}

// Summary reports errors whose timestamp is strictly after now-window.
// A window <= 0 uses DefaultWindow.
func (a *Aggregator) Summary(window time.Duration) Summary {
	if window <= 0 {
		window = DefaultWindow
	}

	a.mu.RLock()
	cutoff := a.clock.Now().Add(-window)
	types := make(map[string]int)
	total := 0
	for i := range a.records {
		if a.records[i].Timestamp.After(cutoff) {
			types[a.records[i].Type]++
			total++
		}
	}
	a.mu.RUnlock()

	hours := window.Hours()
	return Summary{
		PeriodHours:      hours,
		TotalErrors:      total,
		ErrorTypes:       types,
		ErrorRatePerHour: math.Round(float64(total)/hours*100) / 100,
		MostCommon:       mostCommon(types),
	}
}

// mostCommon returns the highest-count key, breaking ties lexicographically.
func mostCommon(counts map[string]int) string {
	best, bestCount := "", 0
	for k, c := range counts {
		if c > bestCount || (c == bestCount && k < best) {
			best, bestCount = k, c
		}
	}
	return best
}

// Frequencies returns the all-time count per error type.
func (a *Aggregator) Frequencies() map[string]int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]int64, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// TopTypes returns up to n error types ordered by all-time count.
func (a *Aggregator) TopTypes(n int) []string {
	freq := a.Frequencies()
	types := make([]string, 0, len(freq))
	for k := range freq {
		types = append(types, k)
	}
	sort.Slice(types, func(i, j int) bool {
		if freq[types[i]] != freq[types[j]] {
			return freq[types[i]] > freq[types[j]]
		}
		return types[i] < types[j]
	})
	if n >= 0 && n < len(types) {
		types = types[:n]
	}
	return types
}

// Recent returns the most recent n records, oldest first.
func (a *Aggregator) Recent(n int) []Record {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if n > len(a.records) || n < 0 {
		n = len(a.records)
	}
	recent := make([]Record, n)
	copy(recent, a.records[len(a.records)-n:])
	return recent
}

// Get returns the buffered record with the given ID.
func (a *Aggregator) Get(id string) (Record, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i := len(a.records) - 1; i >= 0; i-- {
		if a.records[i].ID == id {
			return a.records[i], true
		}
	}
	return Record{}, false
}

// Len returns the number of buffered records.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}
