// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes Prometheus collectors for the shipping
// pipeline.
//
// A nil *Metrics is valid and records nothing, so library code can
// call through it unconditionally. Binaries create one with [New]
// against their own registry and serve it with promhttp.
package metrics
