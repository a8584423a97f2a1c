// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindOther is any failure without a specific recovery path:
	// permission denied, malformed request, rejected events, network
	// errors that exhausted the client's own retries.
	KindOther Kind = iota

	// KindThrottled means the service asked the caller to slow down
	// or is temporarily unavailable.
	KindThrottled

	// KindInvalidToken means the sequence token sent with a write is
	// stale.
	KindInvalidToken

	// KindAlreadyAccepted means the service has already stored this
	// exact batch.
	KindAlreadyAccepted

	// KindNotFound means the group or stream does not exist.
	KindNotFound

	// KindAlreadyExists means a create call found the resource in
	// place. EnsureDestination absorbs it; it only escapes from lower
	// level helpers.
	KindAlreadyExists
)

var kindNames = [...]string{
	KindOther:           "other",
	KindThrottled:       "throttled",
	KindInvalidToken:    "invalid_token",
	KindAlreadyAccepted: "already_accepted",
	KindNotFound:        "not_found",
	KindAlreadyExists:   "already_exists",
}

// String returns the snake_case name used in logs, metrics labels,
// and the relay wire format.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind is the inverse of Kind.String. Unknown names map to
// KindOther.
func ParseKind(name string) Kind {
	for kind, candidate := range kindNames {
		if candidate == name {
			return Kind(kind)
		}
	}
	return KindOther
}

// Error is a classified transport failure.
type Error struct {
	Kind Kind

	// ExpectedToken is the sequence token the service says it wanted,
	// when it reports one alongside KindInvalidToken or
	// KindAlreadyAccepted. Empty when unknown.
	ExpectedToken string

	// Err is the underlying service error.
	Err error
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "transport: " + e.Kind.String()
	}
	return fmt.Sprintf("transport: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or
// KindOther if there is none.
func KindOf(err error) Kind {
	var transportError *Error
	if errors.As(err, &transportError) {
		return transportError.Kind
	}
	return KindOther
}

// ExpectedTokenOf returns the expected token carried by err, if any.
func ExpectedTokenOf(err error) (string, bool) {
	var transportError *Error
	if errors.As(err, &transportError) && transportError.ExpectedToken != "" {
		return transportError.ExpectedToken, true
	}
	return "", false
}
