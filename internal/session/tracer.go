// Package session owns the live trace for one run at a time. The Tracer is
// the single mutation point: consumers apply events through it under a
// generation token, so a superseded consumer's late events can never touch
// the trace of a newer run.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"rlmtrace/internal/events"
	"rlmtrace/internal/history"
	"rlmtrace/internal/logging"
	"rlmtrace/internal/observability"
	"rlmtrace/internal/trace"
)

// Binding ties a consumer to one generation of the tracer. Applying with a
// stale binding is a silent no-op.
type Binding struct {
	generation uint64
}

// Tracer holds the current execution value and its lifecycle.
type Tracer struct {
	mu         sync.RWMutex
	exec       *trace.Execution
	generation uint64

	logger  logging.Logger
	metrics *observability.Metrics
	store   *history.Store
	now     func() time.Time
}

// Option configures a Tracer.
type Option func(*Tracer)

func WithLogger(logger logging.Logger) Option {
	return func(t *Tracer) { t.logger = logging.OrNop(logger) }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(t *Tracer) { t.metrics = metrics }
}

// WithHistory retains finished executions in the given store.
func WithHistory(store *history.Store) Option {
	return func(t *Tracer) { t.store = store }
}

// NewTracer creates an empty tracer; no execution exists until Begin or the
// first execution_start event of a bound consumer.
func NewTracer(opts ...Option) *Tracer {
	t := &Tracer{
		logger: logging.NewComponentLogger("Tracer"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin starts a fresh run: a pending placeholder execution with a locally
// generated id, replaced wholesale by the stream's execution_start. The
// returned binding invalidates every earlier one.
func (t *Tracer) Begin() Binding {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	t.exec = &trace.Execution{
		ID:         uuid.NewString(),
		Iterations: []*trace.Iteration{},
		Status:     trace.StatusPending,
	}
	t.logger.Info("Began run generation %d", t.generation)
	return Binding{generation: t.generation}
}

// Reset discards the current execution without starting a new run. Earlier
// bindings are invalidated.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	t.exec = nil
}

// Apply folds one event into the trace. Returns false when the event was a
// no-op, either because the binding is stale or because the reducer ignored
// it.
func (t *Tracer) Apply(b Binding, ev events.Event) bool {
	if ev == nil {
		return false
	}
	eventType := string(ev.EventType())

	t.mu.Lock()
	if b.generation != t.generation {
		t.mu.Unlock()
		t.logger.Debug("Dropped %s from stale consumer (generation %d)", eventType, b.generation)
		return false
	}
	started := time.Now()
	prev := t.exec
	next := trace.ApplyAt(prev, ev, t.now())
	t.exec = next
	t.mu.Unlock()

	ctx := context.Background()
	if next == prev {
		t.metrics.ReducerNoop(ctx, eventType)
		return false
	}
	t.metrics.EventApplied(ctx, eventType)
	t.metrics.ObserveApply(ctx, time.Since(started).Seconds(), eventType)

	if next.Status.Terminal() && (prev == nil || !prev.Status.Terminal()) {
		t.store.Add(next)
	}
	return true
}

// Fail records a caller-observed failure (transport error). Terminal
// statuses are left untouched.
func (t *Tracer) Fail(message string) {
	t.terminalize(func(exec *trace.Execution, now time.Time) *trace.Execution {
		return trace.MarkFailed(exec, message, now)
	})
}

// Timeout records that the run exceeded its deadline.
func (t *Tracer) Timeout() {
	t.terminalize(trace.MarkTimeout)
}

func (t *Tracer) terminalize(mark func(*trace.Execution, time.Time) *trace.Execution) {
	t.mu.Lock()
	prev := t.exec
	next := mark(prev, t.now())
	t.exec = next
	t.mu.Unlock()

	if next != prev && next != nil && next.Status.Terminal() {
		t.store.Add(next)
	}
}

// Conclude maps a consumer outcome onto the trace. A clean close leaves the
// status as last observed, cancellation is a deliberate stop, a deadline is
// a timeout, and anything else fails the run.
func (t *Tracer) Conclude(err error) {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		t.logger.Info("Stream cancelled; trace left as observed")
	case errors.Is(err, context.DeadlineExceeded):
		t.Timeout()
	default:
		t.Fail(err.Error())
	}
}

// Snapshot returns the current execution value. It is immutable: the
// reducer never modifies a published value, so callers may read it freely.
func (t *Tracer) Snapshot() *trace.Execution {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.exec
}

// Stats derives aggregates from the current snapshot.
func (t *Tracer) Stats() trace.Stats {
	return trace.Collect(t.Snapshot())
}

// Status reports the current execution status; pending when no run exists.
func (t *Tracer) Status() trace.Status {
	exec := t.Snapshot()
	if exec == nil {
		return trace.StatusPending
	}
	return exec.Status
}

// Version reports the snapshot's change counter; zero when no run exists.
func (t *Tracer) Version() uint64 {
	exec := t.Snapshot()
	if exec == nil {
		return 0
	}
	return exec.Version
}
