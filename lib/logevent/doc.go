// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logevent defines the unit of delivery and the serializer
// that produces it.
//
// A [Record] is a millisecond timestamp plus message bytes. Its
// ByteSize includes the fixed per-event overhead the ingestion
// service charges (26 bytes for CloudWatch Logs), so a local check
// of sum(ByteSize) against the batch limit matches the server's own
// accounting exactly.
//
// A [Serializer] turns an arbitrary payload into message bytes:
// strings pass through, errors render their text, and anything else
// is encoded as compact JSON. Values that JSON cannot represent are
// replaced one at a time by a fallback rendering, so serialization
// never fails. Oversized messages are cut on a UTF-8 boundary and
// marked with [TruncationMarker].
package logevent
