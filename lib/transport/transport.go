// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"

	"github.com/bureau-foundation/cwship/lib/logevent"
)

// Destination names a log stream within a log group.
type Destination struct {
	Group  string
	Stream string
}

// String returns "group/stream".
func (d Destination) String() string {
	return d.Group + "/" + d.Stream
}

// Transport is a log ingestion service. Calls for one destination are
// never issued concurrently by the delivery worker; implementations
// must still be safe for concurrent use across destinations.
//
// Sequence tokens are opaque. The empty string means "no token", which
// is what a stream that has never been written to reports.
type Transport interface {
	// EnsureDestination creates the group and stream if they are
	// missing. An already existing group or stream is not an error;
	// created reports whether the stream was newly made.
	EnsureDestination(ctx context.Context, destination Destination) (created bool, err error)

	// CurrentToken returns the authoritative sequence token for the
	// stream. A missing stream is an *Error of KindNotFound.
	CurrentToken(ctx context.Context, destination Destination) (string, error)

	// PutBatch writes records, which are sorted by timestamp, and
	// returns the token for the next write.
	PutBatch(ctx context.Context, destination Destination, records []logevent.Record, token string) (next string, err error)
}
