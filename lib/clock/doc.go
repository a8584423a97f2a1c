// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for the delivery pipeline.
//
// The delivery worker waits on the periodic flush ticker and on retry
// backoff delays. Per-request deadlines stay on the context.
// Production code passes Real(). Tests pass Fake(), which never moves
// on its own: a test registers the timers it expects with
// WaitForTimers and then fires them with Advance.
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	worker, _ := delivery.NewWorker(delivery.Config{Clock: fake, ...})
//	go worker.Run(ctx)
//	fake.WaitForTimers(1)          // the flush ticker is armed
//	fake.Advance(time.Minute)      // deliver whatever is pending
//
// The delivery pipeline does not call time.After or time.NewTicker
// directly.
package clock
