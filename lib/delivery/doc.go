// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package delivery runs the single goroutine that moves batches from
// the pending queue to the ingestion service.
//
// One [Worker] owns one destination. It wakes on a periodic ticker
// (when records are pending), on the queue's watermark (when a full
// batch is waiting), or on an explicit [Worker.Flush]. Each batch is
// sent with the destination's current sequence token, and nothing
// else is sent to that destination until the batch is stored or given
// up on. Only this goroutine mutates the destination state, so the
// token never races.
//
// Every attempt ends in a [transport.Outcome]:
//
//   - Success, including "already accepted": the returned token is
//     kept and the batch is done.
//   - Throttled: wait with exponential backoff and jitter, then send
//     the same batch again, up to [RetryPolicy.MaxAttempts] times.
//   - Invalid token: adopt the token the service expected, or ask it
//     for the current one, and send once more.
//   - Not found: forget the stream exists, recreate it, and send once
//     more.
//   - Anything else: drop the batch, report a [Failure], and carry on
//     with the next one.
//
// A failed batch never stops the worker. Failures go to the configured
// callback and the worker's logger, never back into the queue.
package delivery
