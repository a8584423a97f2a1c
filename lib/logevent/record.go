// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logevent

import "time"

const (
	// EventOverhead is the per-event byte charge the service adds to
	// each message when computing batch size.
	EventOverhead = 26

	// MaxEventBytes is the service's limit on a single event,
	// overhead included.
	MaxEventBytes = 256 * 1024

	// DefaultMaxMessageBytes is the largest message that fits in one
	// event.
	DefaultMaxMessageBytes = MaxEventBytes - EventOverhead
)

// Record is one timestamped log message. Records are values: once
// built they are not modified.
type Record struct {
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64

	// Payload is the message text.
	Payload []byte

	// ByteSize is len(Payload) + EventOverhead.
	ByteSize int
}

// NewRecord builds a Record stamped at t.
func NewRecord(t time.Time, payload []byte) Record {
	return Record{
		Timestamp: t.UnixMilli(),
		Payload:   payload,
		ByteSize:  len(payload) + EventOverhead,
	}
}

// Time returns the record timestamp as a time.Time.
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Message returns the payload as a string.
func (r Record) Message() string {
	return string(r.Payload)
}
