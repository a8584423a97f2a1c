// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/cwship/lib/config"
	"github.com/bureau-foundation/cwship/lib/delivery"
	"github.com/bureau-foundation/cwship/lib/logship"
	"github.com/bureau-foundation/cwship/lib/process"
	"github.com/bureau-foundation/cwship/lib/transport"
	"github.com/bureau-foundation/cwship/lib/version"
)

const programName = "cwship"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	process.Exit(programName, run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// openTransport is replaced in tests to observe what was shipped.
var openTransport = func(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	return cfg.Transport.Open(ctx, cfg.Limits())
}

// flags holds the command-line overrides.
type flags struct {
	configPath    string
	group         string
	stream        string
	transportKind string
	region        string
	endpoint      string
	relayAddress  string
	relayNetwork  string
	compression   string
	noCreate      bool
	flushInterval time.Duration
	format        string
	timeKey       string
	closeTimeout  time.Duration
	tee           bool
	verbose       bool
	showVersion   bool
}

func newFlagSet(output io.Writer, values *flags) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.StringVar(&values.configPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	flagSet.StringVarP(&values.group, "group", "g", "", "log group name template")
	flagSet.StringVarP(&values.stream, "stream", "s", "", "log stream name template")
	flagSet.StringVar(&values.transportKind, "transport", "", "cloudwatch, relay, or memory")
	flagSet.StringVar(&values.region, "region", "", "AWS region for the cloudwatch transport")
	flagSet.StringVar(&values.endpoint, "endpoint", "", "CloudWatch Logs endpoint override")
	flagSet.StringVar(&values.relayAddress, "relay-address", "", "cwship-relay socket path or host:port")
	flagSet.StringVar(&values.relayNetwork, "relay-network", "", "unix or tcp")
	flagSet.StringVar(&values.compression, "compression", "", "relay payload compression: none, lz4, or zstd")
	flagSet.BoolVar(&values.noCreate, "no-create", false, "do not create the group or stream")
	flagSet.DurationVar(&values.flushInterval, "flush-interval", 0, "longest time a line waits before delivery")
	flagSet.StringVar(&values.format, "format", formatText, "input format: text or json")
	flagSet.StringVar(&values.timeKey, "time-key", "", "with --format json, the field holding the event time")
	flagSet.DurationVar(&values.closeTimeout, "close-timeout", 30*time.Second, "how long to wait for delivery at end of input")
	flagSet.BoolVar(&values.tee, "tee", false, "copy input to standard output")
	flagSet.BoolVarP(&values.verbose, "verbose", "v", false, "log delivery progress")
	flagSet.BoolVar(&values.showVersion, "version", false, "print version and exit")
	return flagSet
}

// loadConfig picks the configuration source and applies flag
// overrides.
func loadConfig(flagSet *pflag.FlagSet, values *flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case values.configPath != "":
		cfg, err = config.LoadFile(values.configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if flagSet.Changed("group") {
		cfg.Destination.Group = values.group
	}
	if flagSet.Changed("stream") {
		cfg.Destination.Stream = values.stream
	}
	if values.noCreate {
		cfg.Destination.AutoCreate = false
	}
	if flagSet.Changed("transport") {
		cfg.Transport.Kind = config.TransportKind(values.transportKind)
	}
	if flagSet.Changed("region") {
		cfg.Transport.Region = values.region
	}
	if flagSet.Changed("endpoint") {
		cfg.Transport.Endpoint = values.endpoint
	}
	if flagSet.Changed("relay-address") {
		cfg.Transport.Address = values.relayAddress
	}
	if flagSet.Changed("relay-network") {
		cfg.Transport.Network = values.relayNetwork
	}
	if flagSet.Changed("compression") {
		cfg.Transport.Compression = values.compression
	}
	if flagSet.Changed("flush-interval") {
		cfg.FlushInterval = values.flushInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var values flags
	flagSet := newFlagSet(stderr, &values)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if values.showVersion {
		fmt.Fprintf(stdout, "%s %s\n", programName, version.Info())
		return nil
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	if values.format != formatText && values.format != formatJSON {
		return fmt.Errorf("--format must be text or json, got %q", values.format)
	}

	cfg, err := loadConfig(flagSet, &values)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if values.verbose {
		level = slog.LevelInfo
	}
	logger := newLogger(stderr, level).With("program", version.UserAgent(programName))

	target, err := openTransport(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s transport: %w", cfg.Transport.Kind, err)
	}

	var failed atomic.Int64
	options := cfg.EngineOptions(target)
	options.Logger = logger
	options.OnFailure = func(failure delivery.Failure) {
		failed.Add(int64(failure.Records))
	}
	engine, err := logship.New(options)
	if err != nil {
		return err
	}
	logger.Info("shipping standard input",
		"destination", engine.Destination().String(),
		"transport", string(cfg.Transport.Kind),
		"format", values.format,
	)

	input := &reader{
		engine:       engine,
		format:       values.format,
		timeKey:      values.timeKey,
		backpressure: values.closeTimeout,
	}
	if values.tee {
		input.tee = stdout
	}

	// The scanner cannot be interrupted, so a signal abandons it and
	// proceeds straight to the final flush.
	type readOutcome struct {
		result readResult
		err    error
	}
	readDone := make(chan readOutcome, 1)
	go func() {
		result, err := input.run(ctx, stdin)
		readDone <- readOutcome{result, err}
	}()

	var outcome readOutcome
	select {
	case outcome = <-readDone:
	case <-ctx.Done():
		logger.Warn("interrupted, flushing what was read")
	}

	closeErr := engine.Close(values.closeTimeout)
	stats := engine.Stats()
	fmt.Fprintf(stderr, "%s: read %s lines (%s), delivered %s records in %s batches to %s\n",
		programName,
		humanize.Comma(int64(outcome.result.Lines)),
		humanize.IBytes(uint64(outcome.result.Bytes)),
		humanize.Comma(int64(stats.RecordsDelivered)),
		humanize.Comma(int64(stats.BatchesDelivered)),
		engine.Destination(),
	)

	var errs []error
	if outcome.err != nil && !errors.Is(outcome.err, context.Canceled) {
		errs = append(errs, outcome.err)
	}
	if closeErr != nil {
		errs = append(errs, closeErr)
	}
	if lost := failed.Load() + int64(outcome.result.Rejected); lost > 0 {
		errs = append(errs, fmt.Errorf("%s records were not delivered", humanize.Comma(lost)))
	}
	return errors.Join(errs...)
}
