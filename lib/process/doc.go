// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error handling shared by the
// cwship binaries. It is the one place that writes to stderr before
// (or instead of) the structured logger and that calls os.Exit.
package process
