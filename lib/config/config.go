// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/cwship/lib/batch"
	"github.com/bureau-foundation/cwship/lib/delivery"
	"github.com/bureau-foundation/cwship/lib/logevent"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "CWSHIP_CONFIG"

// Config is the complete cwship configuration.
type Config struct {
	// Destination names the log group and stream.
	Destination DestinationConfig `yaml:"destination"`

	// FlushInterval is the longest a record waits before delivery.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Batch bounds each PutBatch call.
	Batch BatchConfig `yaml:"batch"`

	// MaxMessageBytes truncates serialized messages.
	MaxMessageBytes ByteSize `yaml:"max_message_bytes"`

	// QueueMaxBytes caps memory held by undelivered records.
	QueueMaxBytes ByteSize `yaml:"queue_max_bytes"`

	// Retry controls backoff while the service throttles.
	Retry RetryConfig `yaml:"retry"`

	// RateLimit paces delivery calls. Disabled when
	// requests_per_second is zero.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// RequestTimeout bounds each delivery attempt.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Transport selects the ingestion service.
	Transport TransportConfig `yaml:"transport"`

	// Relay configures cwship-relay. Ignored by cwship.
	Relay RelayConfig `yaml:"relay"`
}

// DestinationConfig names where records go.
type DestinationConfig struct {
	// Group is the log group name template.
	Group string `yaml:"group"`

	// Stream is the log stream name template.
	// Default: {machine_name}/{program_name}/{process_id}
	Stream string `yaml:"stream"`

	// AutoCreate creates the group and stream if missing.
	// Default: true
	AutoCreate bool `yaml:"auto_create"`
}

// BatchConfig mirrors batch.Limits.
type BatchConfig struct {
	MaxBytes ByteSize      `yaml:"max_bytes"`
	MaxCount int           `yaml:"max_count"`
	MaxSpan  time.Duration `yaml:"max_span"`
}

// RetryConfig mirrors delivery.RetryPolicy.
type RetryConfig struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	Multiplier  float64       `yaml:"multiplier"`
	Jitter      float64       `yaml:"jitter"`
	MaxAttempts int           `yaml:"max_attempts"`
}

// RateLimitConfig configures the delivery token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RelayConfig configures the relay daemon.
type RelayConfig struct {
	// Network is "unix" or "tcp". Default: unix
	Network string `yaml:"network"`

	// Listen is the socket path or host:port.
	// Default: ${XDG_RUNTIME_DIR:-/tmp}/cwship-relay.sock
	Listen string `yaml:"listen"`

	// MetricsAddress serves Prometheus metrics over HTTP when set.
	MetricsAddress string `yaml:"metrics_address"`

	// BackendTimeout bounds each call the relay makes on behalf of a
	// client. Default: 30s
	BackendTimeout time.Duration `yaml:"backend_timeout"`
}

// Default returns the configuration every file is layered over.
func Default() *Config {
	retry := delivery.DefaultRetryPolicy()
	limits := batch.DefaultLimits()
	return &Config{
		Destination: DestinationConfig{
			Stream:     "{machine_name}/{program_name}/{process_id}",
			AutoCreate: true,
		},
		FlushInterval: delivery.DefaultFlushInterval,
		Batch: BatchConfig{
			MaxBytes: ByteSize(limits.MaxBytes),
			MaxCount: limits.MaxCount,
			MaxSpan:  limits.MaxSpan,
		},
		MaxMessageBytes: ByteSize(logevent.DefaultMaxMessageBytes),
		QueueMaxBytes:   ByteSize(batch.DefaultQueueMaxBytes),
		Retry: RetryConfig{
			Initial:     retry.Initial,
			Max:         retry.Max,
			Multiplier:  retry.Multiplier,
			Jitter:      retry.Jitter,
			MaxAttempts: retry.MaxAttempts,
		},
		RequestTimeout: delivery.DefaultRequestTimeout,
		Transport: TransportConfig{
			Kind:        TransportCloudWatch,
			Network:     "unix",
			Compression: "zstd",
		},
		Relay: RelayConfig{
			Network:        "unix",
			Listen:         "${XDG_RUNTIME_DIR:-/tmp}/cwship-relay.sock",
			BackendTimeout: delivery.DefaultRequestTimeout,
		},
	}
}

// Load loads the file named by CWSHIP_CONFIG. It fails when the
// variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your cwship.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, layered over Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges one file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is a subset of YAML, so the stripped document goes
		// through the same decoder and struct tags.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in string
// fields that commonly differ between hosts.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Destination.Group = expandVars(c.Destination.Group, vars)
	c.Destination.Stream = expandVars(c.Destination.Stream, vars)
	c.Transport.Endpoint = expandVars(c.Transport.Endpoint, vars)
	c.Transport.Address = expandVars(c.Transport.Address, vars)
	c.Relay.Listen = expandVars(c.Relay.Listen, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns, checking
// vars before the environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Destination names are
// checked after placeholder resolution, by the engine.
func (c *Config) Validate() error {
	var errs []error

	if c.Destination.Group == "" {
		errs = append(errs, errors.New("destination.group is required"))
	}
	if c.Destination.Stream == "" {
		errs = append(errs, errors.New("destination.stream is required"))
	}
	if c.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("flush_interval must be positive, got %v", c.FlushInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be positive, got %v", c.RequestTimeout))
	}
	if c.MaxMessageBytes <= 0 || int(c.MaxMessageBytes) > logevent.DefaultMaxMessageBytes {
		errs = append(errs, fmt.Errorf("max_message_bytes must be in (0, %d], got %d",
			logevent.DefaultMaxMessageBytes, c.MaxMessageBytes))
	}
	if c.QueueMaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("queue_max_bytes must be positive, got %d", c.QueueMaxBytes))
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must not be negative, got %v", c.RateLimit.RequestsPerSecond))
	}
	if err := c.limits().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("batch: %w", err))
	}
	if c.Batch.MaxBytes > batch.DefaultMaxBytes || c.Batch.MaxCount > batch.DefaultMaxCount || c.Batch.MaxSpan > batch.DefaultMaxSpan {
		errs = append(errs, fmt.Errorf("batch limits exceed the service maximum of %d bytes, %d events, %v",
			batch.DefaultMaxBytes, batch.DefaultMaxCount, batch.DefaultMaxSpan))
	}
	if err := c.retryPolicy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	if err := c.Transport.validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Relay.Network != "unix" && c.Relay.Network != "tcp" {
		errs = append(errs, fmt.Errorf("relay.network must be unix or tcp, got %q", c.Relay.Network))
	}

	return errors.Join(errs...)
}

func (c *Config) limits() batch.Limits {
	return batch.Limits{
		MaxBytes: int(c.Batch.MaxBytes),
		MaxCount: c.Batch.MaxCount,
		MaxSpan:  c.Batch.MaxSpan,
	}
}

func (c *Config) retryPolicy() delivery.RetryPolicy {
	return delivery.RetryPolicy{
		Initial:     c.Retry.Initial,
		Max:         c.Retry.Max,
		Multiplier:  c.Retry.Multiplier,
		Jitter:      c.Retry.Jitter,
		MaxAttempts: c.Retry.MaxAttempts,
	}
}
