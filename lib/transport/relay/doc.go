// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay carries Transport calls over a stream socket.
//
// A [Server] listens on a Unix or TCP socket and forwards each request
// to a backing [transport.Transport], typically CloudWatch Logs. A
// [Client] implements Transport by sending requests to that server, so
// processes without cloud credentials can ship through a local relay
// that has them.
//
// Each connection carries one CBOR request and one CBOR response; CBOR
// is self-delimiting so no framing is needed. A put request carries its
// events as a CBOR array in a byte string, optionally compressed with
// zstd or LZ4. Failures travel with their transport.Kind and expected
// token, so the client's delivery worker recovers from them exactly as
// it would talking to the service directly.
package relay
