// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/perfcore/internal/errtrack"
	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/metrics"
)

// DefaultWorkers is the concurrency bound when Config.Workers is zero.
const DefaultWorkers = 10

var (
	// ErrDuplicateTask is returned by SubmitWithID when the ID is taken.
	ErrDuplicateTask = errors.New("task id already exists")

	// ErrClosed is the failure recorded for tasks submitted after Shutdown.
	ErrClosed = errors.New("task tracker is shut down")

	// ErrShutdown is the failure recorded for queued tasks dropped by Shutdown.
	ErrShutdown = errors.New("task dropped by shutdown before start")
)

// State is a task lifecycle state.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether s never transitions further.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Progress reports completion percent. Values are clamped to 0..100.
type Progress func(percent int)

// Func is a unit of work. ctx is canceled when the tracker is forced down.
type Func func(ctx context.Context, report Progress) (interface{}, error)

// Status is the externally visible task record.
type Status struct {
	ID          string      `json:"task_id"`
	State       State       `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Progress    int         `json:"progress"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// Config configures a Tracker.
type Config struct {
	// Workers bounds concurrently executing tasks. Default: 10
	Workers int

	// Clock is the time source. Default: real clock
	Clock clockwork.Clock

	// Errors receives task failures. Optional.
	Errors errtrack.Sink
}

type task struct {
	status   Status
	started  bool
	cancel   context.CancelFunc
	done     chan struct{}
	result   interface{}
	err      error
	finished time.Time
}

// Tracker owns task records and the worker pool.
type Tracker struct {
	mu     sync.Mutex
	tasks  map[string]*task
	closed bool

	sem     *semaphore.Weighted
	workers int
	clock   clockwork.Clock
	errors  errtrack.Sink
	log     zerolog.Logger
	wg      sync.WaitGroup

	// queueCtx aborts pending semaphore acquisitions; runCtx is handed to Func.
	queueCtx    context.Context
	cancelQueue context.CancelFunc
	runCtx      context.Context
	cancelRun   context.CancelFunc
}

// New creates a Tracker.
func New(cfg Config) *Tracker {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	t := &Tracker{
		tasks:   make(map[string]*task),
		sem:     semaphore.NewWeighted(int64(cfg.Workers)),
		workers: cfg.Workers,
		clock:   cfg.Clock,
		errors:  cfg.Errors,
		log:     logging.WithComponent("tasks"),
	}
	t.queueCtx, t.cancelQueue = context.WithCancel(context.Background())
	t.runCtx, t.cancelRun = context.WithCancel(context.Background())
	return t
}

// Workers returns the concurrency bound.
func (t *Tracker) Workers() int {
	return t.workers
}

// Submit schedules fn and returns its generated ID.
func (t *Tracker) Submit(fn Func) string {
	id, _ := t.SubmitWithID(uuid.NewString(), fn)
	return id
}

// SubmitWithID schedules fn under a caller-chosen ID.
func (t *Tracker) SubmitWithID(id string, fn Func) (string, error) {
	t.mu.Lock()
	if _, exists := t.tasks[id]; exists {
		t.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}

	now := t.clock.Now()
	tk := &task{
		status: Status{ID: id, State: StateRunning, StartedAt: now},
		done:   make(chan struct{}),
	}
	t.tasks[id] = tk
	metrics.TasksSubmitted.Inc()

	if t.closed {
		tk.err = ErrClosed
		tk.finished = now
		close(tk.done)
		t.mu.Unlock()
		t.mirrorFailure(id, ErrClosed, 0)
		return id, nil
	}

	var qctx context.Context
	qctx, tk.cancel = context.WithCancel(t.queueCtx)
	t.wg.Add(1)
	t.mu.Unlock()

	go t.run(qctx, tk, fn)
	return id, nil
}

func (t *Tracker) run(qctx context.Context, tk *task, fn Func) {
	defer t.wg.Done()
	defer tk.cancel()
	id := tk.status.ID

	if err := t.sem.Acquire(qctx, 1); err != nil {
		// Canceled while queued, either by Cancel or by Shutdown.
		t.mu.Lock()
		if tk.status.State == StateRunning {
			tk.err = ErrShutdown
			tk.finished = t.clock.Now()
			close(tk.done)
			t.mu.Unlock()
			t.mirrorFailure(id, ErrShutdown, 0)
			return
		}
		t.mu.Unlock()
		return
	}
	defer t.sem.Release(1)

	t.mu.Lock()
	if tk.status.State != StateRunning {
		t.mu.Unlock()
		return
	}
	tk.started = true
	t.mu.Unlock()

	metrics.TasksRunning.Inc()
	start := t.clock.Now()
	result, err := t.execute(tk, fn)
	duration := t.clock.Since(start)
	metrics.TasksRunning.Dec()

	t.mu.Lock()
	tk.result = result
	tk.err = err
	tk.finished = t.clock.Now()
	close(tk.done)
	t.mu.Unlock()

	if err != nil {
		t.mirrorFailure(id, err, duration)
		return
	}
	metrics.RecordTaskFinished(string(StateCompleted), duration)
	t.log.Debug().Str("task_id", id).Dur("duration", duration).Msg("Task completed")
}

// execute runs fn and converts a panic into an error.
func (t *Tracker) execute(tk *task, fn Func) (result interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(t.runCtx, t.reporter(tk))
}

func (t *Tracker) reporter(tk *task) Progress {
	return func(percent int) {
		percent = max(0, min(100, percent))
		t.mu.Lock()
		if !tk.status.State.Terminal() {
			tk.status.Progress = percent
		}
		t.mu.Unlock()
	}
}

func (t *Tracker) mirrorFailure(id string, err error, duration time.Duration) {
	metrics.RecordTaskFinished(string(StateFailed), duration)
	t.log.Warn().Err(err).Str("task_id", id).Msg("Task failed")
	if t.errors != nil {
		t.errors.Log(err, map[string]interface{}{
			"component": "tasks",
			"task_id":   id,
		})
	}
}

// Status returns the task record, promoting a finished task to its terminal
// state on the first query after it finished.
func (t *Tracker) Status(id string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tk, ok := t.tasks[id]
	if !ok {
		return Status{}, false
	}
	t.resolve(tk)
	return tk.status, true
}

// resolve must be called with mu held.
func (t *Tracker) resolve(tk *task) {
	if tk.status.State != StateRunning {
		return
	}
	select {
	case <-tk.done:
	default:
		return
	}

	finished := tk.finished
	tk.status.CompletedAt = &finished
	if tk.err != nil {
		tk.status.State = StateFailed
		tk.status.Error = tk.err.Error()
		return
	}
	tk.status.State = StateCompleted
	tk.status.Result = tk.result
	tk.status.Progress = 100
}

// Cancel cancels a task that has not started executing. It returns false for
// unknown, started or terminal tasks.
func (t *Tracker) Cancel(id string) bool {
	t.mu.Lock()
	tk, ok := t.tasks[id]
	if !ok || tk.started || tk.status.State != StateRunning {
		t.mu.Unlock()
		return false
	}
	select {
	case <-tk.done:
		// Failed before it could start (closed tracker or shutdown).
		t.mu.Unlock()
		return false
	default:
	}

	now := t.clock.Now()
	tk.status.State = StateCancelled
	tk.status.CompletedAt = &now
	if tk.cancel != nil {
		tk.cancel()
	}
	t.mu.Unlock()

	metrics.RecordTaskFinished(string(StateCancelled), 0)
	t.log.Debug().Str("task_id", id).Msg("Task cancelled before start")
	return true
}

// Counts returns the number of tasks per resolved state.
func (t *Tracker) Counts() map[State]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[State]int, 4)
	for _, tk := range t.tasks {
		t.resolve(tk)
		counts[tk.status.State]++
	}
	return counts
}

// Prune removes terminal tasks that completed more than olderThan ago and
// returns how many were removed.
func (t *Tracker) Prune(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-olderThan)
	removed := 0
	for id, tk := range t.tasks {
		t.resolve(tk)
		if !tk.status.State.Terminal() || tk.status.CompletedAt == nil {
			continue
		}
		if tk.status.CompletedAt.Before(cutoff) {
			delete(t.tasks, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tasks.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

// Shutdown stops accepting work, fails queued tasks and waits for running
// ones. If ctx ends first the running tasks' context is canceled and ctx.Err()
// is returned.
func (t *Tracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cancelQueue()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.cancelRun()
		return nil
	case <-ctx.Done():
		t.cancelRun()
		t.log.Warn().Msg("Task tracker shutdown timed out; canceled running tasks")
		return ctx.Err()
	}
}
