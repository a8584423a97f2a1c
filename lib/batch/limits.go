// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/cwship/lib/logevent"
)

// Service limits for a single PutLogEvents call.
const (
	DefaultMaxBytes = 1024 * 1024
	DefaultMaxCount = 10000
	DefaultMaxSpan  = 24 * time.Hour

	// DefaultQueueMaxBytes caps memory held by records waiting for
	// delivery.
	DefaultQueueMaxBytes = 64 * 1024 * 1024
)

// Limits bounds every batch the queue produces.
type Limits struct {
	// MaxBytes is the largest sum of record ByteSize in one batch.
	MaxBytes int

	// MaxCount is the largest number of records in one batch.
	MaxCount int

	// MaxSpan is the largest distance between the oldest and newest
	// timestamp in one batch. Zero disables the check.
	MaxSpan time.Duration
}

// DefaultLimits returns the CloudWatch Logs PutLogEvents limits.
func DefaultLimits() Limits {
	return Limits{
		MaxBytes: DefaultMaxBytes,
		MaxCount: DefaultMaxCount,
		MaxSpan:  DefaultMaxSpan,
	}
}

// Validate reports limits that could never produce a batch.
func (l Limits) Validate() error {
	var errs []error
	if l.MaxBytes <= logevent.EventOverhead {
		errs = append(errs, fmt.Errorf("batch max bytes must exceed the %d byte event overhead, got %d",
			logevent.EventOverhead, l.MaxBytes))
	}
	if l.MaxCount <= 0 {
		errs = append(errs, fmt.Errorf("batch max count must be positive, got %d", l.MaxCount))
	}
	if l.MaxSpan < 0 {
		errs = append(errs, fmt.Errorf("batch max span must not be negative, got %v", l.MaxSpan))
	}
	return errors.Join(errs...)
}
