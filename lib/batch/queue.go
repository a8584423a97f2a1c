// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bureau-foundation/cwship/lib/logevent"
)

var (
	// ErrRecordTooLarge rejects a record that could never fit in a
	// batch on its own.
	ErrRecordTooLarge = errors.New("batch: record exceeds maximum batch size")

	// ErrQueueFull rejects a record when the pending queue is at its
	// byte cap.
	ErrQueueFull = errors.New("batch: pending queue is full")
)

// Queue is the FIFO of records awaiting delivery. Producers Offer;
// one consumer drains. Safe for concurrent use.
type Queue struct {
	limits   Limits
	maxBytes int

	mu      sync.Mutex
	records []logevent.Record
	bytes   int

	watermark chan struct{}
}

// NewQueue creates a queue that cuts batches within limits and holds
// at most maxBytes of pending records (counted by ByteSize). A
// maxBytes of zero means DefaultQueueMaxBytes.
func NewQueue(limits Limits, maxBytes int) (*Queue, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if maxBytes == 0 {
		maxBytes = DefaultQueueMaxBytes
	}
	if maxBytes < limits.MaxBytes {
		return nil, fmt.Errorf("batch: queue cap %d is smaller than one batch (%d)", maxBytes, limits.MaxBytes)
	}
	return &Queue{
		limits:    limits,
		maxBytes:  maxBytes,
		watermark: make(chan struct{}, 1),
	}, nil
}

// Limits returns the batch limits the queue enforces.
func (q *Queue) Limits() Limits { return q.limits }

// Offer appends a record. It never blocks. A record larger than
// MaxBytes is rejected with ErrRecordTooLarge and a record that would
// push the queue past its cap with ErrQueueFull; in both cases the
// queue is unchanged. The record's ByteSize is recomputed from its
// payload.
func (q *Queue) Offer(record logevent.Record) error {
	record.ByteSize = len(record.Payload) + logevent.EventOverhead
	if record.ByteSize > q.limits.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrRecordTooLarge, record.ByteSize, q.limits.MaxBytes)
	}

	q.mu.Lock()
	if q.bytes+record.ByteSize > q.maxBytes {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.records = append(q.records, record)
	q.bytes += record.ByteSize
	full := q.bytes >= q.limits.MaxBytes || len(q.records) >= q.limits.MaxCount
	q.mu.Unlock()

	if full {
		select {
		case q.watermark <- struct{}{}:
		default:
		}
	}
	return nil
}

// DrainOne removes the next batch from the head of the queue. It
// reports false when the queue is empty.
//
// Records are taken in offer order until the next one would break a
// limit. The span check compares against the running minimum and
// maximum timestamp, so a batch whose records arrive out of order
// still stays within MaxSpan once sorted.
func (q *Queue) DrainOne() (Batch, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.records) == 0 {
		return Batch{}, false
	}

	spanLimit := q.limits.MaxSpan.Milliseconds()
	oldest := q.records[0].Timestamp
	newest := oldest
	size := 0
	count := 0
	for _, record := range q.records {
		if count == q.limits.MaxCount || size+record.ByteSize > q.limits.MaxBytes {
			break
		}
		if spanLimit > 0 {
			low, high := min(oldest, record.Timestamp), max(newest, record.Timestamp)
			if high-low > spanLimit {
				break
			}
			oldest, newest = low, high
		}
		size += record.ByteSize
		count++
	}

	records := make([]logevent.Record, count)
	copy(records, q.records[:count])
	clear(q.records[:count])
	q.records = q.records[count:]
	if len(q.records) == 0 {
		q.records = nil
	}
	q.bytes -= size

	sortRecords(records)
	return Batch{Records: records, Bytes: size}, true
}

// Len returns the number of pending records.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// SizeBytes returns the total ByteSize of pending records.
func (q *Queue) SizeBytes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}

// Full reports whether the pending records already fill a batch.
func (q *Queue) Full() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes >= q.limits.MaxBytes || len(q.records) >= q.limits.MaxCount
}

// Watermark receives a signal (coalesced, capacity 1) when an Offer
// leaves a full batch's worth of records pending.
func (q *Queue) Watermark() <-chan struct{} { return q.watermark }
