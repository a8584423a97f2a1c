// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the boundary between the delivery engine
// and a log ingestion service.
//
// A [Transport] creates destinations, reports the current sequence
// token of a stream, and writes batches. Implementations translate
// their service's failures into [*Error] values carrying a [Kind], so
// the delivery worker can decide what to do without knowing which
// service it is talking to. [Classify] reduces any error returned by a
// transport to an [Outcome] the worker's state machine switches on.
//
// Implementations live in subpackages: cloudwatch (AWS CloudWatch
// Logs), memory (an in-process simulation with fault injection), and
// relay (a socket protocol fronting another Transport).
package transport
