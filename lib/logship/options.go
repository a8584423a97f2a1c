// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logship

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bureau-foundation/cwship/lib/batch"
	"github.com/bureau-foundation/cwship/lib/clock"
	"github.com/bureau-foundation/cwship/lib/delivery"
	"github.com/bureau-foundation/cwship/lib/logevent"
	"github.com/bureau-foundation/cwship/lib/metrics"
	"github.com/bureau-foundation/cwship/lib/transport"
)

// Options configures an Engine. Start from DefaultOptions; zero
// durations and limits fall back to their defaults.
type Options struct {
	// Transport is the ingestion service. Required.
	Transport transport.Transport

	// Group and Stream name the destination. Placeholders such as
	// {strftime:%Y-%m-%d} and {machine_name} are resolved once, in
	// New. Both are required.
	Group  string
	Stream string

	// AutoCreate creates the group and stream on first delivery if
	// they do not exist.
	AutoCreate bool

	// FlushInterval is the longest a record waits before a delivery
	// is attempted.
	FlushInterval time.Duration

	// Limits bound each batch.
	Limits batch.Limits

	// MaxMessageBytes truncates serialized messages.
	MaxMessageBytes int

	// QueueMaxBytes caps memory held by undelivered records.
	QueueMaxBytes int

	// Retry controls backoff on throttling.
	Retry delivery.RetryPolicy

	// RequestTimeout bounds each delivery attempt.
	RequestTimeout time.Duration

	// RequestsPerSecond, when positive, paces delivery calls with a
	// token bucket of size Burst.
	RequestsPerSecond float64
	Burst             int

	// Fallback renders values JSON cannot encode. Defaults to
	// logevent.DefaultFallback.
	Fallback logevent.Fallback

	// OnFailure is called on the worker goroutine for each batch the
	// engine gives up on. It must not block or log through the
	// engine's own handler.
	OnFailure func(delivery.Failure)

	// Logger receives the engine's diagnostics. Defaults to JSON on
	// stderr. Whatever it writes to, records it produces while the
	// engine is delivering are not re-enqueued.
	Logger *slog.Logger

	// Clock defaults to the wall clock.
	Clock clock.Clock

	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// DefaultOptions returns options with every default filled in and
// AutoCreate on. Callers set Transport, Group, and Stream.
func DefaultOptions() Options {
	return Options{
		AutoCreate:      true,
		FlushInterval:   delivery.DefaultFlushInterval,
		Limits:          batch.DefaultLimits(),
		MaxMessageBytes: logevent.DefaultMaxMessageBytes,
		QueueMaxBytes:   batch.DefaultQueueMaxBytes,
		Retry:           delivery.DefaultRetryPolicy(),
		RequestTimeout:  delivery.DefaultRequestTimeout,
	}
}

// withDefaults fills zero fields.
func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.FlushInterval == 0 {
		o.FlushInterval = defaults.FlushInterval
	}
	if o.Limits == (batch.Limits{}) {
		o.Limits = defaults.Limits
	}
	if o.MaxMessageBytes == 0 {
		o.MaxMessageBytes = defaults.MaxMessageBytes
	}
	if o.QueueMaxBytes == 0 {
		o.QueueMaxBytes = defaults.QueueMaxBytes
	}
	if o.Retry == (delivery.RetryPolicy{}) {
		o.Retry = defaults.Retry
	}
	if o.RequestTimeout == 0 {
		o.RequestTimeout = defaults.RequestTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	return o
}

func (o Options) validate() error {
	var errs []error
	if o.Transport == nil {
		errs = append(errs, errors.New("Transport is required"))
	}
	if o.Group == "" {
		errs = append(errs, errors.New("Group is required"))
	}
	if o.Stream == "" {
		errs = append(errs, errors.New("Stream is required"))
	}
	if o.FlushInterval < 0 {
		errs = append(errs, fmt.Errorf("FlushInterval must not be negative, got %v", o.FlushInterval))
	}
	if o.MaxMessageBytes < 0 {
		errs = append(errs, fmt.Errorf("MaxMessageBytes must not be negative, got %d", o.MaxMessageBytes))
	}
	if o.MaxMessageBytes > logevent.DefaultMaxMessageBytes {
		errs = append(errs, fmt.Errorf("MaxMessageBytes %d exceeds the service limit %d",
			o.MaxMessageBytes, logevent.DefaultMaxMessageBytes))
	}
	if o.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("RequestsPerSecond must not be negative, got %v", o.RequestsPerSecond))
	}
	if err := o.Limits.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.Retry.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
