// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, Outcome{Class: Success}},
		{"already accepted", &Error{Kind: KindAlreadyAccepted}, Outcome{Class: Success, Kind: KindAlreadyAccepted}},
		{"throttled", Errorf(KindThrottled, "slow down"), Outcome{Class: Retryable, Kind: KindThrottled}},
		{"invalid token", &Error{Kind: KindInvalidToken, ExpectedToken: "7"}, Outcome{Class: Retryable, Kind: KindInvalidToken}},
		{"not found", Errorf(KindNotFound, "no stream"), Outcome{Class: Retryable, Kind: KindNotFound}},
		{"wrapped throttled", fmt.Errorf("put: %w", Errorf(KindThrottled, "x")), Outcome{Class: Retryable, Kind: KindThrottled}},
		{"deadline", fmt.Errorf("put: %w", context.DeadlineExceeded), Outcome{Class: Retryable, Kind: KindThrottled}},
		{"plain error", errors.New("access denied"), Outcome{Class: Fatal, Kind: KindOther}},
		{"already exists", &Error{Kind: KindAlreadyExists}, Outcome{Class: Fatal, Kind: KindAlreadyExists}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(test.err); got != test.want {
				t.Errorf("Classify(%v) = %+v, want %+v", test.err, got, test.want)
			}
		})
	}
}

func TestExpectedTokenOf(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("put: %w", &Error{Kind: KindInvalidToken, ExpectedToken: "abc"})
	token, ok := ExpectedTokenOf(err)
	if !ok || token != "abc" {
		t.Errorf("ExpectedTokenOf = %q, %v, want abc, true", token, ok)
	}
	if _, ok := ExpectedTokenOf(&Error{Kind: KindInvalidToken}); ok {
		t.Error("ExpectedTokenOf reported a token for an error without one")
	}
}

func TestKindRoundTrip(t *testing.T) {
	t.Parallel()
	for kind := KindOther; kind <= KindAlreadyExists; kind++ {
		if got := ParseKind(kind.String()); got != kind {
			t.Errorf("ParseKind(%q) = %v, want %v", kind.String(), got, kind)
		}
	}
	if ParseKind("bogus") != KindOther {
		t.Error("unknown kind name did not map to KindOther")
	}
}

func TestErrorUnwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("boom")
	err := &Error{Kind: KindOther, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find the cause")
	}
	if err.Error() != "transport: other: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}
