// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// cwship-relay is a local daemon that forwards relay requests from
// cwship clients to CloudWatch Logs.
//
// Processes on the machine send batches over a Unix socket (or TCP)
// using the relay protocol, optionally compressed, and the daemon
// holds the AWS credentials and makes the service calls. Error kinds
// and expected sequence tokens are passed back unchanged, so each
// client's delivery worker recovers exactly as if it were talking to
// the service directly.
//
// With --metrics-address, Prometheus metrics are served at /metrics
// and a liveness probe at /healthz.
//
// The daemon stops on SIGINT or SIGTERM after in-flight requests
// complete.
package main
