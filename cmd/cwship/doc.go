// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// cwship ships lines from standard input to a CloudWatch Logs stream.
//
// Each input line becomes one log event. With --format json, lines
// that parse as JSON objects are shipped as structured mappings (and
// --time-key can name a field holding the event time); other lines are
// shipped verbatim. Events are batched and delivered in the background
// while input is read. At end of input, or on SIGINT/SIGTERM, cwship
// flushes for up to --close-timeout and prints a summary on stderr.
//
// Configuration comes from --config, the CWSHIP_CONFIG file, or
// built-in defaults, in that order; flags override individual values.
// The transport is CloudWatch Logs by default. --transport relay sends
// through a cwship-relay daemon and --transport memory is a dry run.
//
// The exit status is non-zero if any record could not be delivered.
package main
