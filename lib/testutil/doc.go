// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireClosed], and [Eventually] wrap the
// select-with-deadline pattern so that tests of the delivery worker
// never hang when a goroutine misbehaves. They are the only place in
// the test suite that waits on the wall clock; everything else drives
// time through clock.Fake.
//
// [SocketDir] returns a short directory under /tmp for Unix sockets,
// whose paths are limited to 108 bytes. [UniqueID] produces
// distinguishable names for streams and groups. [CaptureLogger]
// records slog output so tests can assert on diagnostics.
//
// Helpers call t.Fatalf on failure rather than returning errors.
package testutil
