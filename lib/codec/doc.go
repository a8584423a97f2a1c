// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR configuration used on the relay
// socket.
//
// Log event payloads are JSON text; the envelopes that carry them
// between a cwship client and a cwship-relay are CBOR. Encoding uses
// Core Deterministic Encoding (RFC 8949 §4.2), so the same request
// always produces the same bytes. Decoding into an untyped target
// yields map[string]any rather than CBOR's default
// map[interface{}]interface{}.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Wire types carry `cbor` struct tags only.
package codec
