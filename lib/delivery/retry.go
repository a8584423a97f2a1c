// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

// Default retry parameters.
const (
	DefaultInitialBackoff = 1 * time.Second
	DefaultMaxBackoff     = 30 * time.Second
	DefaultMultiplier     = 2.0
	DefaultJitter         = 0.2
	DefaultMaxAttempts    = 5
)

// RetryPolicy controls backoff after throttling.
type RetryPolicy struct {
	// Initial is the wait after the first throttled attempt.
	Initial time.Duration

	// Max caps the wait.
	Max time.Duration

	// Multiplier scales the wait after each throttled attempt.
	Multiplier float64

	// Jitter spreads each wait uniformly over ±Jitter of its nominal
	// value. Zero disables it.
	Jitter float64

	// MaxAttempts bounds how many times one batch is sent while the
	// service keeps throttling.
	MaxAttempts int
}

// DefaultRetryPolicy returns 1s doubling to 30s with 20% jitter, five
// attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Initial:     DefaultInitialBackoff,
		Max:         DefaultMaxBackoff,
		Multiplier:  DefaultMultiplier,
		Jitter:      DefaultJitter,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Validate rejects policies that could not make progress.
func (p RetryPolicy) Validate() error {
	var errs []error
	if p.Initial <= 0 {
		errs = append(errs, fmt.Errorf("retry initial backoff must be positive, got %v", p.Initial))
	}
	if p.Max < p.Initial {
		errs = append(errs, fmt.Errorf("retry max backoff %v is below initial %v", p.Max, p.Initial))
	}
	if p.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("retry multiplier must be at least 1, got %v", p.Multiplier))
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		errs = append(errs, fmt.Errorf("retry jitter must be in [0, 1), got %v", p.Jitter))
	}
	if p.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry max attempts must be at least 1, got %d", p.MaxAttempts))
	}
	return errors.Join(errs...)
}

// backoff returns the nominal wait before retry number n (1-based),
// without jitter.
func (p RetryPolicy) backoff(n int) time.Duration {
	wait := float64(p.Initial)
	for range n - 1 {
		wait *= p.Multiplier
		if wait >= float64(p.Max) {
			return p.Max
		}
	}
	return min(time.Duration(wait), p.Max)
}

// jittered spreads wait by ±Jitter using sample, a value in [0, 1).
func (p RetryPolicy) jittered(wait time.Duration, sample float64) time.Duration {
	if p.Jitter == 0 {
		return wait
	}
	factor := 1 + p.Jitter*(2*sample-1)
	return time.Duration(float64(wait) * factor)
}

// delay is the wait before retry n with random jitter applied.
func (p RetryPolicy) delay(n int) time.Duration {
	return p.jittered(p.backoff(n), rand.Float64())
}
