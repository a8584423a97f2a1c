// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/cwship/lib/batch"
	"github.com/bureau-foundation/cwship/lib/transport"
	"github.com/bureau-foundation/cwship/lib/transport/cloudwatch"
	"github.com/bureau-foundation/cwship/lib/transport/memory"
	"github.com/bureau-foundation/cwship/lib/transport/relay"
)

// TransportKind selects a transport implementation.
type TransportKind string

const (
	// TransportCloudWatch writes directly to CloudWatch Logs.
	TransportCloudWatch TransportKind = "cloudwatch"

	// TransportRelay sends batches to a cwship-relay daemon.
	TransportRelay TransportKind = "relay"

	// TransportMemory keeps records in process. Useful for dry runs.
	TransportMemory TransportKind = "memory"
)

// TransportConfig configures the ingestion service.
type TransportConfig struct {
	// Kind is cloudwatch, relay, or memory. Default: cloudwatch
	Kind TransportKind `yaml:"kind"`

	// Region and Endpoint apply to cloudwatch. Both default to the
	// AWS SDK's configuration chain.
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	// Network and Address locate the relay. Network defaults to unix.
	Network string `yaml:"network"`
	Address string `yaml:"address"`

	// Compression is none, lz4, or zstd, for relay payloads.
	// Default: zstd
	Compression string `yaml:"compression"`
}

func (t TransportConfig) validate() error {
	var errs []error
	switch t.Kind {
	case TransportCloudWatch, TransportMemory:
	case TransportRelay:
		if t.Address == "" {
			errs = append(errs, errors.New("transport.address is required for the relay transport"))
		}
		if t.Network != "unix" && t.Network != "tcp" {
			errs = append(errs, fmt.Errorf("transport.network must be unix or tcp, got %q", t.Network))
		}
		if _, err := relay.ParseCompression(t.Compression); err != nil {
			errs = append(errs, fmt.Errorf("transport.compression: %w", err))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.kind must be cloudwatch, relay, or memory, got %q", t.Kind))
	}
	return errors.Join(errs...)
}

// Open builds the configured transport. limits is used by the memory
// transport to enforce the same batch bounds as the engine.
func (t TransportConfig) Open(ctx context.Context, limits batch.Limits) (transport.Transport, error) {
	switch t.Kind {
	case TransportCloudWatch:
		return cloudwatch.Load(ctx, cloudwatch.Config{
			Region:   t.Region,
			Endpoint: t.Endpoint,
		})
	case TransportRelay:
		compression, err := relay.ParseCompression(t.Compression)
		if err != nil {
			return nil, err
		}
		return relay.NewClient(t.Network, t.Address, compression)
	case TransportMemory:
		return memory.New(limits), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", t.Kind)
	}
}
