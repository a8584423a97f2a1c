// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/bureau-foundation/cwship/lib/batch"
	"github.com/bureau-foundation/cwship/lib/clock"
	"github.com/bureau-foundation/cwship/lib/destination"
	"github.com/bureau-foundation/cwship/lib/metrics"
	"github.com/bureau-foundation/cwship/lib/transport"
)

// Defaults for Config.
const (
	DefaultFlushInterval  = 60 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

var (
	// ErrStopped is returned by Flush once the worker has exited, and
	// is the error of a batch abandoned because of shutdown.
	ErrStopped = errors.New("delivery: worker stopped")

	// ErrRetriesExhausted wraps the last error of a batch that stayed
	// throttled for every allowed attempt.
	ErrRetriesExhausted = errors.New("delivery: retries exhausted")
)

// State is the worker's position in its delivery cycle.
type State int32

const (
	StateIdle State = iota
	StateBatching
	StateSending
	StateRetrying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBatching:
		return "batching"
	case StateSending:
		return "sending"
	case StateRetrying:
		return "retrying"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Failure describes a batch the worker gave up on.
type Failure struct {
	Err      error
	Kind     transport.Kind
	Records  int
	Bytes    int
	Attempts int
}

// Counters are cumulative delivery totals.
type Counters struct {
	BatchesDelivered uint64
	RecordsDelivered uint64
	BatchesDropped   uint64
	RecordsDropped   uint64
	Retries          uint64
}

// Config holds the parameters for NewWorker.
type Config struct {
	// Queue supplies batches. Required.
	Queue *batch.Queue

	// Manager owns the destination's existence and token. Required.
	Manager *destination.Manager

	// Transport writes batches. Required.
	Transport transport.Transport

	// Clock drives the flush ticker and backoff. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Logger receives delivery diagnostics. It must not feed records
	// back into Queue. Defaults to slog.Default().
	Logger *slog.Logger

	// FlushInterval is the ticker period. Defaults to
	// DefaultFlushInterval.
	FlushInterval time.Duration

	// Retry controls throttling backoff. The zero value means
	// DefaultRetryPolicy().
	Retry RetryPolicy

	// RequestTimeout bounds each attempt (ensure, token probe, put).
	// Defaults to DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Limiter, if set, paces PutBatch calls.
	Limiter *rate.Limiter

	// OnFailure, if set, is called on the worker goroutine for each
	// abandoned batch. It must not block.
	OnFailure func(Failure)

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Worker delivers batches for one destination. Create with NewWorker
// and start with Run.
type Worker struct {
	queue          *batch.Queue
	manager        *destination.Manager
	transport      transport.Transport
	clock          clock.Clock
	logger         *slog.Logger
	flushInterval  time.Duration
	retry          RetryPolicy
	requestTimeout time.Duration
	limiter        *rate.Limiter
	onFailure      func(Failure)
	metrics        *metrics.Metrics

	flushRequests chan chan struct{}
	done          chan struct{}
	started       atomic.Bool
	state         atomic.Int32
	inFlight      atomic.Bool

	mu       sync.Mutex
	counters Counters
}

// NewWorker validates config and returns an unstarted worker.
func NewWorker(config Config) (*Worker, error) {
	var errs []error
	if config.Queue == nil {
		errs = append(errs, errors.New("delivery: Queue is required"))
	}
	if config.Manager == nil {
		errs = append(errs, errors.New("delivery: Manager is required"))
	}
	if config.Transport == nil {
		errs = append(errs, errors.New("delivery: Transport is required"))
	}
	if config.FlushInterval < 0 {
		errs = append(errs, fmt.Errorf("delivery: negative flush interval %v", config.FlushInterval))
	}
	if config.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("delivery: negative request timeout %v", config.RequestTimeout))
	}
	if config.Retry == (RetryPolicy{}) {
		config.Retry = DefaultRetryPolicy()
	}
	if err := config.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.FlushInterval == 0 {
		config.FlushInterval = DefaultFlushInterval
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}

	return &Worker{
		queue:          config.Queue,
		manager:        config.Manager,
		transport:      config.Transport,
		clock:          config.Clock,
		logger:         config.Logger,
		flushInterval:  config.FlushInterval,
		retry:          config.Retry,
		requestTimeout: config.RequestTimeout,
		limiter:        config.Limiter,
		onFailure:      config.OnFailure,
		metrics:        config.Metrics,
		flushRequests:  make(chan chan struct{}),
		done:           make(chan struct{}),
	}, nil
}

// Run delivers batches until ctx is cancelled. It must be called
// exactly once; it returns after the in-progress attempt, if any,
// completes. Records still queued at that point are not delivered.
func (w *Worker) Run(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		panic("delivery: Worker.Run called twice")
	}
	defer close(w.done)
	defer w.setState(StateStopped)

	ticker := w.clock.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		w.setState(StateIdle)
		select {
		case <-ctx.Done():
			if remaining := w.queue.Len(); remaining > 0 {
				w.logger.Warn("delivery worker stopped with records pending",
					"records", remaining,
					"bytes", w.queue.SizeBytes(),
				)
			}
			return

		case <-ticker.C:
			if w.queue.Len() > 0 {
				w.drain(ctx, false)
			}

		case <-w.queue.Watermark():
			w.drain(ctx, true)

		case reply := <-w.flushRequests:
			w.drain(ctx, false)
			close(reply)
		}
	}
}

// Flush asks the worker to deliver everything queued and waits until
// the queue is empty and no attempt is in flight, or ctx is done. The
// worker keeps going after ctx expires; only the wait is abandoned.
func (w *Worker) Flush(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case w.flushRequests <- reply:
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-w.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

// State returns the worker's current state.
func (w *Worker) State() State { return State(w.state.Load()) }

// InFlight reports whether a batch is between DrainOne and its final
// outcome.
func (w *Worker) InFlight() bool { return w.inFlight.Load() }

// Counters returns a snapshot of the delivery totals.
func (w *Worker) Counters() Counters {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counters
}

func (w *Worker) setState(state State) { w.state.Store(int32(state)) }

// drain delivers batches until the queue is empty or, when onlyFull
// is set, until less than a full batch remains. Stop is checked
// between batches.
func (w *Worker) drain(ctx context.Context, onlyFull bool) {
	for ctx.Err() == nil {
		if onlyFull && !w.queue.Full() {
			return
		}
		w.setState(StateBatching)
		w.inFlight.Store(true)
		next, ok := w.queue.DrainOne()
		if !ok {
			w.inFlight.Store(false)
			return
		}
		w.metrics.SetPending(w.queue.Len(), w.queue.SizeBytes())
		w.deliver(ctx, next)
		w.inFlight.Store(false)
	}
}

// deliver runs the attempt loop for one batch until it is stored or
// abandoned.
func (w *Worker) deliver(ctx context.Context, pending batch.Batch) {
	var (
		attempts        int
		throttled       int
		tokenRecovered  bool
		streamRecreated bool
	)
	for {
		attempts++
		w.setState(StateSending)
		ensureErr, err := w.attempt(ctx, pending)
		if ensureErr != nil {
			// A throttled or timed out creation backs off like a put.
			if kind := transport.Classify(ensureErr).Kind; kind != transport.KindThrottled {
				w.fail(pending, ensureErr, kind, attempts)
				return
			}
			err = ensureErr
		}

		outcome := transport.Classify(err)
		switch outcome.Class {
		case transport.Success:
			if outcome.Kind == transport.KindAlreadyAccepted {
				w.adoptExpectedToken(err)
				w.logger.Info("batch already accepted by service",
					"records", pending.Len(),
					"destination", w.manager.Destination().String(),
				)
			}
			w.succeed(pending)
			return

		case transport.Fatal:
			// A partially rejected put still advances the stream.
			if expected, ok := transport.ExpectedTokenOf(err); ok {
				w.manager.Sequencer().Update(expected)
			}
			w.fail(pending, err, outcome.Kind, attempts)
			return
		}

		switch outcome.Kind {
		case transport.KindThrottled:
			throttled++
			if throttled >= w.retry.MaxAttempts {
				w.fail(pending, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err), outcome.Kind, attempts)
				return
			}
			wait := w.retry.delay(throttled)
			w.logger.Warn("delivery throttled, backing off",
				"error", err,
				"attempt", attempts,
				"backoff", wait,
				"records", pending.Len(),
			)
			w.setState(StateRetrying)
			select {
			case <-w.clock.After(wait):
			case <-ctx.Done():
				w.fail(pending, fmt.Errorf("%w during backoff: %w", ErrStopped, err), outcome.Kind, attempts)
				return
			}

		case transport.KindInvalidToken:
			if tokenRecovered {
				w.fail(pending, err, outcome.Kind, attempts)
				return
			}
			tokenRecovered = true
			w.adoptExpectedToken(err)
			w.logger.Info("sequence token stale, retrying with fresh token",
				"destination", w.manager.Destination().String(),
			)

		case transport.KindNotFound:
			if streamRecreated {
				w.fail(pending, err, outcome.Kind, attempts)
				return
			}
			streamRecreated = true
			w.manager.Reset()
			w.logger.Warn("destination missing, recreating",
				"destination", w.manager.Destination().String(),
			)
		}

		w.metrics.Retry(outcome.Kind.String())
		w.mu.Lock()
		w.counters.Retries++
		w.mu.Unlock()
	}
}

// attempt performs one ensure, optional token probe, and put under its
// own deadline. The deadline is detached from ctx so that shutdown
// never interrupts a request mid-flight. A non-nil ensureErr means the
// destination could not be created; err is the probe or put result.
func (w *Worker) attempt(ctx context.Context, pending batch.Batch) (ensureErr, err error) {
	attemptContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.requestTimeout)
	defer cancel()

	if err := w.manager.Ensure(attemptContext); err != nil {
		return err, nil
	}

	destination := w.manager.Destination()
	sequencer := w.manager.Sequencer()
	if sequencer.NeedsProbe() {
		token, err := w.transport.CurrentToken(attemptContext, destination)
		if err != nil {
			return nil, fmt.Errorf("reading sequence token for %s: %w", destination, err)
		}
		sequencer.Update(token)
	}
	token, _ := sequencer.CurrentToken()

	if w.limiter != nil {
		if err := w.limiter.Wait(attemptContext); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	start := time.Now()
	next, err := w.transport.PutBatch(attemptContext, destination, pending.Records, token)
	w.metrics.ObservePut(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("putting %d records to %s: %w", pending.Len(), destination, err)
	}
	sequencer.Update(next)
	return nil, nil
}

// adoptExpectedToken takes the token the service said it expected, or
// marks the current one for probing when the error carries none.
func (w *Worker) adoptExpectedToken(err error) {
	sequencer := w.manager.Sequencer()
	if expected, ok := transport.ExpectedTokenOf(err); ok {
		sequencer.Update(expected)
		return
	}
	sequencer.Invalidate()
}

func (w *Worker) succeed(pending batch.Batch) {
	w.metrics.BatchDelivered(pending.Len())
	w.mu.Lock()
	w.counters.BatchesDelivered++
	w.counters.RecordsDelivered += uint64(pending.Len())
	w.mu.Unlock()
}

func (w *Worker) fail(pending batch.Batch, err error, kind transport.Kind, attempts int) {
	failure := Failure{
		Err:      err,
		Kind:     kind,
		Records:  pending.Len(),
		Bytes:    pending.Bytes,
		Attempts: attempts,
	}
	w.logger.Error("dropping batch",
		"error", err,
		"kind", kind.String(),
		"records", failure.Records,
		"bytes", failure.Bytes,
		"attempts", attempts,
		"destination", w.manager.Destination().String(),
	)
	w.metrics.BatchDropped(kind.String(), pending.Len())
	w.mu.Lock()
	w.counters.BatchesDropped++
	w.counters.RecordsDropped += uint64(pending.Len())
	w.mu.Unlock()
	if w.onFailure != nil {
		w.onFailure(failure)
	}
}
