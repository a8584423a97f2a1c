// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"github.com/bureau-foundation/cwship/lib/batch"
	"github.com/bureau-foundation/cwship/lib/logship"
	"github.com/bureau-foundation/cwship/lib/transport"
)

// EngineOptions maps c onto engine options for the given transport.
// Logger, Clock, Metrics, Fallback, and OnFailure are left for the
// caller.
func (c *Config) EngineOptions(target transport.Transport) logship.Options {
	options := logship.DefaultOptions()
	options.Transport = target
	options.Group = c.Destination.Group
	options.Stream = c.Destination.Stream
	options.AutoCreate = c.Destination.AutoCreate
	options.FlushInterval = c.FlushInterval
	options.Limits = c.limits()
	options.MaxMessageBytes = int(c.MaxMessageBytes)
	options.QueueMaxBytes = int(c.QueueMaxBytes)
	options.Retry = c.retryPolicy()
	options.RequestTimeout = c.RequestTimeout
	options.RequestsPerSecond = c.RateLimit.RequestsPerSecond
	options.Burst = c.RateLimit.Burst
	return options
}

// Limits returns the configured batch bounds.
func (c *Config) Limits() batch.Limits {
	return c.limits()
}
