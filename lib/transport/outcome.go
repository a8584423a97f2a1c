// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
)

// Class is the coarse result of one delivery attempt.
type Class int

const (
	// Success: the batch is stored.
	Success Class = iota

	// Retryable: the batch may succeed if sent again after the
	// recovery step for its Kind.
	Retryable

	// Fatal: the batch cannot be delivered.
	Fatal
)

func (c Class) String() string {
	switch c {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome tags the result of a PutBatch call.
type Outcome struct {
	Class Class
	Kind  Kind
}

// Classify maps a PutBatch error to an Outcome. A nil error and
// KindAlreadyAccepted are both Success. Throttling, stale tokens, and
// missing destinations are Retryable; the caller bounds how often.
// Context expiry counts as throttling: the service did not answer in
// time, and the same batch may be sent again.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Class: Success}
	}
	kind := KindOf(err)
	if kind == KindOther && errors.Is(err, context.DeadlineExceeded) {
		kind = KindThrottled
	}
	switch kind {
	case KindAlreadyAccepted:
		return Outcome{Class: Success, Kind: kind}
	case KindThrottled, KindInvalidToken, KindNotFound:
		return Outcome{Class: Retryable, Kind: kind}
	default:
		return Outcome{Class: Fatal, Kind: kind}
	}
}
