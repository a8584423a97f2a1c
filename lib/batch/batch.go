// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"sort"
	"time"

	"github.com/bureau-foundation/cwship/lib/logevent"
)

// Batch is an ordered group of records delivered in one call. It is
// never empty and never modified after the queue hands it out.
type Batch struct {
	// Records are sorted ascending by timestamp; ties keep offer
	// order.
	Records []logevent.Record

	// Bytes is the sum of the records' ByteSize.
	Bytes int
}

// Len returns the number of records.
func (b Batch) Len() int { return len(b.Records) }

// Span returns the distance between the oldest and newest record.
func (b Batch) Span() time.Duration {
	if len(b.Records) == 0 {
		return 0
	}
	first := b.Records[0].Timestamp
	last := b.Records[len(b.Records)-1].Timestamp
	return time.Duration(last-first) * time.Millisecond
}

// sortRecords stable-sorts records by timestamp in place.
func sortRecords(records []logevent.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp < records[j].Timestamp
	})
}
