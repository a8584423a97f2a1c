// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"testing"
	"time"
)

func TestBackoffDoublesToCap(t *testing.T) {
	t.Parallel()
	policy := DefaultRetryPolicy()
	want := []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for index, expected := range want {
		if got := policy.backoff(index + 1); got != expected {
			t.Errorf("backoff(%d) = %v, want %v", index+1, got, expected)
		}
	}
}

func TestJitterBounds(t *testing.T) {
	t.Parallel()
	policy := DefaultRetryPolicy()
	base := 10 * time.Second
	if got := policy.jittered(base, 0); (got - 8*time.Second).Abs() > time.Microsecond {
		t.Errorf("jittered low = %v, want 8s", got)
	}
	if got := policy.jittered(base, 0.5); (got - base).Abs() > time.Microsecond {
		t.Errorf("jittered mid = %v, want 10s", got)
	}
	for range 100 {
		got := policy.delay(4)
		if got < 6400*time.Millisecond || got > 9600*time.Millisecond {
			t.Fatalf("delay(4) = %v outside 8s ±20%%", got)
		}
	}

	policy.Jitter = 0
	if got := policy.delay(2); got != 2*time.Second {
		t.Errorf("delay without jitter = %v, want 2s", got)
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	t.Parallel()
	if err := DefaultRetryPolicy().Validate(); err != nil {
		t.Errorf("default policy invalid: %v", err)
	}
	bad := RetryPolicy{Initial: 0, Max: -1, Multiplier: 0.5, Jitter: 1, MaxAttempts: 0}
	if err := bad.Validate(); err == nil {
		t.Error("invalid policy accepted")
	}
}
