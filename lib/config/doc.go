// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads cwship configuration from a single file.
//
// The file is named by the CWSHIP_CONFIG environment variable (via
// [Load]) or a --config flag (via [LoadFile]). There is no discovery
// and no fallback search path. Files ending in .json or .jsonc are
// stripped of comments and trailing commas before parsing; everything
// else is YAML.
//
// Values are layered over [Default]. After loading, ${VAR} and
// ${VAR:-default} references in the destination names, transport
// endpoint and address, and relay listen address are expanded from
// the environment. Name placeholders such as {strftime:%Y-%m-%d} are
// left for the engine to resolve.
//
// Byte sizes accept either integers or humanized strings ("1MiB",
// "64 MB"). Durations use Go syntax ("5s", "1m30s").
//
// [Config.EngineOptions] maps a configuration onto logship.Options
// and [TransportConfig.Open] builds the configured transport.
package config
