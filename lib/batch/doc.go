// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package batch holds records waiting for delivery and cuts them into
// batches the ingestion service will accept.
//
// Producers call [Queue.Offer]; the delivery worker calls
// [Queue.DrainOne] until it reports nothing left. Every batch DrainOne
// returns satisfies the configured [Limits]: total ByteSize at most
// MaxBytes, at most MaxCount records, and, when MaxSpan is set, no
// more than MaxSpan between its oldest and newest timestamp. Records
// inside a batch are stable-sorted by timestamp; batches come out in
// the order their records were offered.
//
// [Queue.Watermark] lets the worker sleep instead of polling: it fires
// when the pending records would already fill a whole batch.
package batch
