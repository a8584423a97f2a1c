// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bureau-foundation/cwship/lib/batch"
	"github.com/bureau-foundation/cwship/lib/logevent"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// maxLineBytes bounds one input line. Longer messages are truncated
// by the engine anyway; this only caps the scanner's buffer.
const maxLineBytes = 4 * logevent.MaxEventBytes

// enqueuer is the part of logship.Engine the reader needs.
type enqueuer interface {
	Enqueue(payload any, t time.Time) error
	Flush(timeout time.Duration) bool
}

// reader turns input lines into engine records.
type reader struct {
	engine  enqueuer
	format  string
	timeKey string
	tee     io.Writer

	// backpressure is how long to wait for the queue to drain when
	// it is full before giving up on a line.
	backpressure time.Duration
}

// readResult summarizes one pass over the input.
type readResult struct {
	Lines    int
	Bytes    int
	Rejected int
}

// run reads until EOF or ctx is cancelled.
func (r *reader) run(ctx context.Context, input io.Reader) (readResult, error) {
	var result readResult
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		result.Lines++
		result.Bytes += len(line)
		if r.tee != nil {
			r.tee.Write(line)
			r.tee.Write([]byte{'\n'})
		}

		payload, timestamp := r.parse(line)
		if err := r.enqueue(payload, timestamp); err != nil {
			result.Rejected++
		}
	}
	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("reading input: %w", err)
	}
	return result, nil
}

// enqueue offers one record, flushing once if the queue is full.
func (r *reader) enqueue(payload any, timestamp time.Time) error {
	err := r.engine.Enqueue(payload, timestamp)
	if errors.Is(err, batch.ErrQueueFull) {
		r.engine.Flush(r.backpressure)
		err = r.engine.Enqueue(payload, timestamp)
	}
	return err
}

// parse returns the payload for line and its timestamp. A zero time
// means "now" to the engine.
func (r *reader) parse(line []byte) (any, time.Time) {
	// The scanner reuses its buffer.
	text := string(line)
	if r.format != formatJSON {
		return text, time.Time{}
	}

	decoder := json.NewDecoder(bytes.NewReader(line))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil || decoder.More() {
		return text, time.Time{}
	}
	if r.timeKey == "" {
		return fields, time.Time{}
	}
	return fields, parseTimestamp(fields[r.timeKey])
}

// parseTimestamp accepts an RFC 3339 string or a number of
// milliseconds since the epoch.
func parseTimestamp(value any) time.Time {
	switch typed := value.(type) {
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, typed); err == nil {
			return parsed
		}
	case json.Number:
		if milliseconds, err := typed.Int64(); err == nil {
			return time.UnixMilli(milliseconds)
		}
	}
	return time.Time{}
}
