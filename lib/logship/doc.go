// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logship ships log records to an ingestion service in the
// background.
//
// An [Engine] wires together the serializer, the pending queue, the
// destination manager, and one delivery worker:
//
//	engine, err := logship.New(logship.Options{
//	    Transport: cloudwatchTransport,
//	    Group:     "/app/{program_name}",
//	    Stream:    "{machine_name}-{strftime:%Y-%m-%d}",
//	})
//	...
//	engine.Enqueue(map[string]any{"event": "login", "user": id}, time.Now())
//	...
//	if err := engine.Close(10 * time.Second); err != nil { ... }
//
// Enqueue never blocks and never reports delivery problems; it fails
// only for records that could never be sent (too large, queue full)
// and after Close. Delivery failures go to Options.OnFailure and the
// engine's diagnostic logger.
//
// [Engine.Handler] adapts the engine to log/slog. Records the engine
// itself logs while delivering are never fed back into it, even when
// the diagnostic logger ends up writing through that handler.
package logship
