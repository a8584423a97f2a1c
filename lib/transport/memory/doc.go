// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory is an in-process log ingestion service implementing
// [transport.Transport].
//
// It enforces the same batch limits and sequence token protocol as
// CloudWatch Logs: a write must carry the token returned by the
// previous write, a stale token is answered with the token the service
// expected, and resending an accepted batch with the token it was
// originally sent with is answered with "already accepted" rather than
// stored twice. Duplicate detection compares BLAKE3 fingerprints of
// (token, records).
//
// Faults can be scripted per operation with [Service.InjectFault], a
// write delay set with [Service.SetDelay], and another writer simulated
// with [Service.AppendExternal]. The engine's tests run against it, and
// the cwship binary uses it for dry runs.
package memory
