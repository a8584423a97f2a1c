// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package destination tracks the state of the single log stream an
// engine writes to: whether it is known to exist, and the sequence
// token the service expects on the next write.
//
// [Manager] lazily creates the group and stream on first use and
// forgets that they exist when the service later reports them missing.
// [Sequencer] holds the token. Both are mutated only from the delivery
// worker's goroutine; other goroutines read them through [Manager.State]
// snapshots.
//
// [ResolveName] expands placeholders in configured group and stream
// names once, when the engine is built.
package destination
