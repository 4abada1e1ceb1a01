// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tomtom215/perfcore/internal/errtrack"
	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/metrics"
)

// Defaults applied to zero Config fields.
const (
	DefaultBufferSize   = 1000
	DefaultTickInterval = time.Second
	DefaultBatchSize    = 100
)

// TopicPrefix prefixes every stream's publish topic.
const TopicPrefix = "stream."

var (
	// ErrStreamExists is returned when starting a stream that is already active.
	ErrStreamExists = errors.New("stream already active")

	// ErrStreamNotFound is returned by Subscribe for unknown streams.
	ErrStreamNotFound = errors.New("stream not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("stream processor closed")
)

// State is a stream lifecycle state.
type State string

const (
	StateActive  State = "active"
	StateStopped State = "stopped"
	// StateError marks a stream whose drain loop failed. It is never
	// drained again until restarted.
	StateError State = "error"
)

// Record is one pushed data point.
type Record map[string]interface{}

// TransformFunc is an optional per-stream enrichment step.
type TransformFunc func(Record) (Record, error)

// Options are the per-stream processing options passed to StartStream.
type Options struct {
	// Config is caller metadata echoed back in Info.
	Config map[string]interface{}

	// Transform runs on each enriched record. An error counts as an
	// enrichment failure for that record.
	Transform TransformFunc
}

// Info describes a started stream.
type Info struct {
	ID        string                 `json:"stream_id"`
	Source    string                 `json:"data_source"`
	Config    map[string]interface{} `json:"processing_config,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	State     State                  `json:"status"`
}

// Status is a point-in-time view of a stream.
type Status struct {
	ID                      string     `json:"stream_id"`
	Source                  string     `json:"data_source"`
	State                   State      `json:"status"`
	StartedAt               time.Time  `json:"started_at"`
	StoppedAt               *time.Time `json:"stopped_at,omitempty"`
	ProcessedCount          int64      `json:"processed_count"`
	ErrorCount              int64      `json:"error_count"`
	DroppedCount            int64      `json:"dropped_count"`
	BufferSize              int        `json:"buffer_size"`
	ProcessingRatePerMinute float64    `json:"processing_rate"`
	Error                   string     `json:"error,omitempty"`
}

// Config configures a Processor.
type Config struct {
	// BufferSize bounds each stream's buffer. Default: 1000
	BufferSize int

	// TickInterval is the drain cadence. Default: 1s
	TickInterval time.Duration

	// BatchSize is the maximum records drained per tick. Default: 100
	BatchSize int

	// Clock is the time source. Default: real clock
	Clock clockwork.Clock

	// Errors receives enrichment failures. Optional.
	Errors errtrack.Sink

	// QualityScore produces the synthetic quality score. Default: uniform 70..99
	QualityScore func() int
}

type stream struct {
	info      Info
	transform TransformFunc
	stoppedAt *time.Time
	failure   string

	buf       []Record
	processed int64
	errored   int64
	dropped   int64

	stop chan struct{}
	done chan struct{}
}

// Processor owns all streams and the pub/sub they publish to.
type Processor struct {
	mu      sync.Mutex
	streams map[string]*stream
	closed  bool

	bufferSize   int
	tickInterval time.Duration
	batchSize    int
	clock        clockwork.Clock
	errors       errtrack.Sink
	quality      func() int
	log          zerolog.Logger

	pubsub *gochannel.GoChannel
}

// New creates a Processor.
func New(cfg Config) *Processor {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.QualityScore == nil {
		cfg.QualityScore = func() int { return 70 + rand.IntN(30) }
	}

	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewSlogLogger(logging.NewQuietSlogLogger("stream-pubsub")),
	)

	return &Processor{
		streams:      make(map[string]*stream),
		bufferSize:   cfg.BufferSize,
		tickInterval: cfg.TickInterval,
		batchSize:    cfg.BatchSize,
		clock:        cfg.Clock,
		errors:       cfg.Errors,
		quality:      cfg.QualityScore,
		log:          logging.WithComponent("stream"),
		pubsub:       pubsub,
	}
}

// StartStream registers id as active and starts its drain loop. Restarting a
// stopped or failed stream resets its buffer and counters.
func (p *Processor) StartStream(id, source string, opts Options) (Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return Info{}, ErrClosed
	}
	if s, ok := p.streams[id]; ok && s.info.State == StateActive {
		return Info{}, fmt.Errorf("%w: %s", ErrStreamExists, id)
	}

	s := &stream{
		info: Info{
			ID:        id,
			Source:    source,
			Config:    opts.Config,
			StartedAt: p.clock.Now(),
			State:     StateActive,
		},
		transform: opts.Transform,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	p.streams[id] = s
	metrics.StreamsActive.Inc()

	go p.loop(s)

	p.log.Info().Str("stream_id", id).Str("source", source).Msg("Stream started")
	return s.info, nil
}

// PushData appends r to the stream's buffer, discarding the oldest record
// when full. It returns false for unknown or stopped streams.
func (p *Processor) PushData(id string, r Record) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.streams[id]
	if !ok || s.info.State != StateActive {
		return false
	}

	if len(s.buf) >= p.bufferSize {
		overflow := len(s.buf) - p.bufferSize + 1
		clear(s.buf[:overflow])
		s.buf = s.buf[overflow:]
		s.dropped += int64(overflow)
		metrics.StreamRecordsDropped.WithLabelValues(id).Add(float64(overflow))
	}
	s.buf = append(s.buf, r)
	metrics.StreamRecordsPushed.WithLabelValues(id).Inc()
	return true
}

// Status returns a snapshot of the stream.
func (p *Processor) Status(id string) (Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.streams[id]
	if !ok {
		return Status{}, false
	}
	return p.statusLocked(s), true
}

func (p *Processor) statusLocked(s *stream) Status {
	end := p.clock.Now()
	if s.stoppedAt != nil {
		end = *s.stoppedAt
	}

	var rate float64
	if minutes := end.Sub(s.info.StartedAt).Minutes(); minutes > 0 {
		rate = math.Round(float64(s.processed)/minutes*100) / 100
	}

	return Status{
		ID:                      s.info.ID,
		Source:                  s.info.Source,
		State:                   s.info.State,
		StartedAt:               s.info.StartedAt,
		StoppedAt:               s.stoppedAt,
		ProcessedCount:          s.processed,
		ErrorCount:              s.errored,
		DroppedCount:            s.dropped,
		BufferSize:              len(s.buf),
		ProcessingRatePerMinute: rate,
		Error:                   s.failure,
	}
}

// Streams returns the status of every known stream, sorted by ID.
func (p *Processor) Streams() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.streams))
	for _, s := range p.streams {
		out = append(out, p.statusLocked(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveCount returns the number of active streams.
func (p *Processor) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, s := range p.streams {
		if s.info.State == StateActive {
			n++
		}
	}
	return n
}

// FailedCount returns the number of streams in StateError.
func (p *Processor) FailedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, s := range p.streams {
		if s.info.State == StateError {
			n++
		}
	}
	return n
}

// Stop transitions an active stream to stopped and waits for its loop to
// exit. Buffered records are kept for inspection but never drained.
func (p *Processor) Stop(id string) bool {
	p.mu.Lock()
	s, ok := p.streams[id]
	if !ok || s.info.State != StateActive {
		p.mu.Unlock()
		return false
	}
	p.stopLocked(s)
	p.mu.Unlock()

	<-s.done
	p.log.Info().Str("stream_id", id).Msg("Stream stopped")
	return true
}

// stopLocked must be called with mu held.
func (p *Processor) stopLocked(s *stream) {
	now := p.clock.Now()
	s.info.State = StateStopped
	s.stoppedAt = &now
	close(s.stop)
	metrics.StreamsActive.Dec()
}

// Subscribe returns the decoded batches published for id. The channel is
// closed when ctx is canceled or the processor is closed.
func (p *Processor) Subscribe(ctx context.Context, id string) (<-chan Batch, error) {
	p.mu.Lock()
	_, ok := p.streams[id]
	closed := p.closed
	p.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, id)
	}

	msgs, err := p.pubsub.Subscribe(ctx, TopicPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("subscribe to stream %s: %w", id, err)
	}

	out := make(chan Batch)
	go func() {
		defer close(out)
		for msg := range msgs {
			b, err := decodeBatch(msg.Payload)
			msg.Ack()
			if err != nil {
				p.log.Warn().Err(err).Str("stream_id", id).Msg("Dropping undecodable batch")
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Serve blocks until ctx is canceled, then closes the processor.
// It implements suture.Service.
func (p *Processor) Serve(ctx context.Context) error {
	<-ctx.Done()
	if err := p.Close(); err != nil {
		p.log.Warn().Err(err).Msg("Stream processor close failed")
	}
	return ctx.Err()
}

func (p *Processor) String() string {
	return "stream-processor"
}

// Close stops every active stream and closes the pub/sub. Safe to call twice.
func (p *Processor) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	var waiting []*stream
	for _, s := range p.streams {
		if s.info.State == StateActive {
			p.stopLocked(s)
			waiting = append(waiting, s)
		}
	}
	p.mu.Unlock()

	for _, s := range waiting {
		<-s.done
	}
	return p.pubsub.Close()
}

func (p *Processor) loop(s *stream) {
	defer close(s.done)
	defer func() {
		if rec := recover(); rec != nil {
			p.fail(s, fmt.Errorf("stream loop panic: %v", rec))
		}
	}()

	ticker := p.clock.NewTicker(p.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.Chan():
			if err := p.drain(s); err != nil {
				p.fail(s, err)
				return
			}
		}
	}
}

// fail moves an active stream to the error state and reports err.
func (p *Processor) fail(s *stream, err error) {
	id := s.info.ID

	p.mu.Lock()
	if s.info.State == StateActive {
		now := p.clock.Now()
		s.info.State = StateError
		s.stoppedAt = &now
		s.failure = err.Error()
		metrics.StreamsActive.Dec()
	}
	p.mu.Unlock()

	p.log.Error().Err(err).Str("stream_id", id).Msg("Stream failed")
	if p.errors == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().Interface("panic", rec).Str("stream_id", id).Msg("Error sink panicked")
		}
	}()
	p.errors.Log(err, map[string]interface{}{
		"component": "stream",
		"stream_id": id,
	})
}

// drain processes one batch from the front of the buffer. A returned error
// fails the stream.
func (p *Processor) drain(s *stream) error {
	p.mu.Lock()
	if s.info.State != StateActive || len(s.buf) == 0 {
		p.mu.Unlock()
		return nil
	}
	n := min(p.batchSize, len(s.buf))
	batch := make([]Record, n)
	copy(batch, s.buf[:n])
	clear(s.buf[:n])
	s.buf = s.buf[n:]
	p.mu.Unlock()

	id := s.info.ID
	processed := make([]Processed, 0, n)
	var failed int64
	for _, r := range batch {
		out, err := p.enrich(s, r)
		if err != nil {
			failed++
			metrics.StreamEnrichmentErrors.WithLabelValues(id).Inc()
			if p.errors != nil {
				p.errors.Log(err, map[string]interface{}{
					"component":  "stream",
					"stream_id":  id,
					"data_point": fmt.Sprintf("%v", map[string]interface{}(r)),
				})
			}
			continue
		}
		processed = append(processed, out)
	}

	p.mu.Lock()
	s.processed += int64(len(processed))
	s.errored += failed
	p.mu.Unlock()

	metrics.StreamRecordsProcessed.WithLabelValues(id).Add(float64(len(processed)))
	metrics.StreamBatchSize.Observe(float64(len(processed)))

	if len(processed) == 0 {
		return nil
	}
	return p.emit(id, processed)
}

func (p *Processor) emit(id string, records []Processed) error {
	payload, err := encodeBatch(Batch{StreamID: id, EmittedAt: p.clock.Now(), Records: records})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("stream_id", id)
	if err := p.pubsub.Publish(TopicPrefix+id, msg); err != nil {
		return fmt.Errorf("publish batch: %w", err)
	}
	p.log.Debug().Str("stream_id", id).Int("records", len(records)).Msg("Emitted processed batch")
	return nil
}
