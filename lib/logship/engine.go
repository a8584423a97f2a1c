// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logship

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
	"github.com/bureau-foundation/cwship/lib/delivery"
	"github.com/bureau-foundation/cwship/lib/destination"
	"github.com/bureau-foundation/cwship/lib/logevent"
	"github.com/bureau-foundation/cwship/lib/metrics"
	"github.com/bureau-foundation/cwship/lib/transport"
)

var (
	// ErrClosed is returned by Enqueue and Close after Close.
	ErrClosed = errors.New("logship: engine is closed")

	// ErrFlushTimeout is returned by Close when pending records were
	// not delivered before the timeout.
	ErrFlushTimeout = errors.New("logship: flush did not complete before timeout")
)

// Stats is a point-in-time view of the engine.
type Stats struct {
	Enqueued uint64
	Rejected uint64

	PendingRecords int
	PendingBytes   int

	delivery.Counters

	WorkerState delivery.State
	InFlight    bool
	Destination destination.State
	Closed      bool
}

// Engine accepts records from any number of goroutines and delivers
// them from one background worker.
type Engine struct {
	serializer logevent.Serializer
	queue      *batch.Queue
	manager    *destination.Manager
	worker     *delivery.Worker
	clock      clock.Clock
	logger     *slog.Logger
	metrics    *metrics.Metrics
	stopWorker context.CancelFunc

	// mu orders Enqueue against Close: a record offered under the
	// read lock is either rejected or visible to Close's final flush.
	mu     sync.RWMutex
	closed bool

	enqueued          atomic.Uint64
	rejected          atomic.Uint64
	enqueueAfterClose sync.Once
}

// New resolves the destination names, validates options, and starts
// the delivery worker.
func New(options Options) (*Engine, error) {
	options = options.withDefaults()
	if err := options.validate(); err != nil {
		return nil, fmt.Errorf("logship: invalid options: %w", err)
	}

	now := options.Clock.Now()
	group, err := destination.ResolveName(options.Group, now)
	if err != nil {
		return nil, fmt.Errorf("logship: resolving group name: %w", err)
	}
	stream, err := destination.ResolveName(options.Stream, now)
	if err != nil {
		return nil, fmt.Errorf("logship: resolving stream name: %w", err)
	}
	if err := errors.Join(destination.ValidateGroupName(group), destination.ValidateStreamName(stream)); err != nil {
		return nil, fmt.Errorf("logship: %w", err)
	}

	logger := slog.New(&reportingHandler{inner: options.Logger.Handler()})

	queue, err := batch.NewQueue(options.Limits, options.QueueMaxBytes)
	if err != nil {
		return nil, fmt.Errorf("logship: %w", err)
	}
	manager, err := destination.NewManager(destination.ManagerConfig{
		Transport:   options.Transport,
		Destination: transport.Destination{Group: group, Stream: stream},
		AutoCreate:  options.AutoCreate,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("logship: %w", err)
	}

	var limiter *rate.Limiter
	if options.RequestsPerSecond > 0 {
		burst := max(options.Burst, 1)
		limiter = rate.NewLimiter(rate.Limit(options.RequestsPerSecond), burst)
	}

	worker, err := delivery.NewWorker(delivery.Config{
		Queue:          queue,
		Manager:        manager,
		Transport:      options.Transport,
		Clock:          options.Clock,
		Logger:         logger,
		FlushInterval:  options.FlushInterval,
		Retry:          options.Retry,
		RequestTimeout: options.RequestTimeout,
		Limiter:        limiter,
		OnFailure:      options.OnFailure,
		Metrics:        options.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("logship: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine := &Engine{
		serializer: logevent.Serializer{
			Fallback:        options.Fallback,
			MaxMessageBytes: options.MaxMessageBytes,
		},
		queue:      queue,
		manager:    manager,
		worker:     worker,
		clock:      options.Clock,
		logger:     logger,
		metrics:    options.Metrics,
		stopWorker: cancel,
	}
	go worker.Run(ctx)

	logger.Debug("log shipping engine started",
		"group", group,
		"stream", stream,
		"flush_interval", options.FlushInterval,
	)
	return engine, nil
}

// Enqueue serializes payload and queues it with timestamp t (the
// engine's clock when t is zero). It returns immediately.
func (e *Engine) Enqueue(payload any, t time.Time) error {
	if t.IsZero() {
		t = e.clock.Now()
	}
	return e.EnqueueRecord(e.serializer.Record(payload, t))
}

// EnqueueRecord queues an already serialized record. Records larger
// than a batch fail with batch.ErrRecordTooLarge; a full queue fails
// with batch.ErrQueueFull.
func (e *Engine) EnqueueRecord(record logevent.Record) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.rejected.Add(1)
		e.metrics.RecordRejected("closed")
		return ErrClosed
	}

	if err := e.queue.Offer(record); err != nil {
		e.rejected.Add(1)
		switch {
		case errors.Is(err, batch.ErrRecordTooLarge):
			e.metrics.RecordRejected("too_large")
		case errors.Is(err, batch.ErrQueueFull):
			e.metrics.RecordRejected("queue_full")
		default:
			e.metrics.RecordRejected("other")
		}
		return err
	}
	e.enqueued.Add(1)
	e.metrics.RecordEnqueued()
	e.metrics.SetPending(e.queue.Len(), e.queue.SizeBytes())
	return nil
}

// Flush waits up to timeout for everything queued before the call to
// be delivered or given up on. It reports whether that finished in
// time. A timed out flush leaves the records queued; the worker keeps
// delivering them.
func (e *Engine) Flush(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.worker.Flush(ctx) == nil
}

// Close rejects further records, flushes for up to timeout, and stops
// the worker once its current attempt finishes. It returns
// ErrFlushTimeout if records were still pending at the deadline; those
// records are not delivered. Calling Close again returns ErrClosed.
func (e *Engine) Close(timeout time.Duration) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	flushErr := e.worker.Flush(ctx)
	e.stopWorker()
	select {
	case <-e.worker.Done():
	case <-ctx.Done():
	}

	if flushErr != nil {
		pending := e.queue.Len()
		e.logger.Warn("closing with undelivered records",
			"records", pending,
			"error", flushErr,
		)
		return fmt.Errorf("%w: %d records pending", ErrFlushTimeout, pending)
	}
	return nil
}

// Stats returns a snapshot for observability.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	return Stats{
		Enqueued:       e.enqueued.Load(),
		Rejected:       e.rejected.Load(),
		PendingRecords: e.queue.Len(),
		PendingBytes:   e.queue.SizeBytes(),
		Counters:       e.worker.Counters(),
		WorkerState:    e.worker.State(),
		InFlight:       e.worker.InFlight(),
		Destination:    e.manager.State(),
		Closed:         closed,
	}
}

// Destination returns the resolved group and stream.
func (e *Engine) Destination() transport.Destination {
	return e.manager.Destination()
}
