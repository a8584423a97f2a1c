// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/cwship/lib/config"
	"github.com/bureau-foundation/cwship/lib/metrics"
	"github.com/bureau-foundation/cwship/lib/process"
	"github.com/bureau-foundation/cwship/lib/transport"
	"github.com/bureau-foundation/cwship/lib/transport/relay"
	"github.com/bureau-foundation/cwship/lib/version"
)

const programName = "cwship-relay"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	process.Exit(programName, run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// openBackend is replaced in tests.
var openBackend = func(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	return cfg.Transport.Open(ctx, cfg.Limits())
}

// ready, when set, receives the server once it is listening. Tests
// use it to find the bound address.
var ready func(*relay.Server)

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	flagSet := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	configPath := flagSet.String("config", "", "configuration file (default: $"+config.EnvironmentVariable+", then built-in defaults)")
	network := flagSet.String("network", "", "unix or tcp")
	listen := flagSet.String("listen", "", "socket path or host:port to listen on")
	metricsAddress := flagSet.String("metrics-address", "", "serve Prometheus metrics on this host:port")
	backendKind := flagSet.String("backend", "", "cloudwatch or memory")
	region := flagSet.String("region", "", "AWS region")
	endpoint := flagSet.String("endpoint", "", "CloudWatch Logs endpoint override")
	backendTimeout := flagSet.Duration("backend-timeout", 0, "bound on each forwarded call")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(stdout, "%s %s\n", programName, version.Info())
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	switch {
	case *configPath != "":
		cfg, err = config.LoadFile(*configPath)
	case os.Getenv(config.EnvironmentVariable) != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if flagSet.Changed("network") {
		cfg.Relay.Network = *network
	}
	if flagSet.Changed("listen") {
		cfg.Relay.Listen = *listen
	}
	if flagSet.Changed("metrics-address") {
		cfg.Relay.MetricsAddress = *metricsAddress
	}
	if flagSet.Changed("backend-timeout") {
		cfg.Relay.BackendTimeout = *backendTimeout
	}
	if flagSet.Changed("backend") {
		cfg.Transport.Kind = config.TransportKind(*backendKind)
	}
	if flagSet.Changed("region") {
		cfg.Transport.Region = *region
	}
	if flagSet.Changed("endpoint") {
		cfg.Transport.Endpoint = *endpoint
	}
	if cfg.Transport.Kind == config.TransportRelay {
		return errors.New("the relay cannot use the relay transport as its backend")
	}
	if cfg.Relay.Listen == "" {
		return errors.New("a listen address is required")
	}
	// The relay serves any destination its clients name, so only the
	// transport and relay sections need to be valid.
	if cfg.Destination.Group == "" {
		cfg.Destination.Group = "unused"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(stderr).With("program", version.UserAgent(programName))

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s backend: %w", cfg.Transport.Kind, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	relayMetrics, err := metrics.NewRelay(registry)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	server, err := relay.NewServer(relay.ServerConfig{
		Network:        cfg.Relay.Network,
		Address:        cfg.Relay.Listen,
		Backend:        backend,
		BackendTimeout: cfg.Relay.BackendTimeout,
		Logger:         logger,
		Metrics:        relayMetrics,
	})
	if err != nil {
		return err
	}

	if cfg.Relay.MetricsAddress != "" {
		metricsServer, _, err := startMetrics(cfg.Relay.MetricsAddress, registry, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownContext, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownContext)
		}()
	}

	serveDone := make(chan error, 1)
	go func() { serveDone <- server.Serve(ctx) }()

	select {
	case <-server.Ready():
		if ready != nil {
			ready(server)
		}
	case err := <-serveDone:
		return err
	}

	logger.Info("relay running",
		"backend", string(cfg.Transport.Kind),
		"backend_timeout", cfg.Relay.BackendTimeout,
		"metrics_address", cfg.Relay.MetricsAddress,
	)

	err = <-serveDone
	logger.Info("relay stopped")
	return err
}

// startMetrics serves registry on address until the returned server
// is shut down. It also returns the bound address.
func startMetrics(address string, registry *prometheus.Registry, logger *slog.Logger) (*http.Server, net.Addr, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, nil, fmt.Errorf("listening for metrics on %s: %w", address, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", "error", err)
		}
	}()
	logger.Info("serving metrics", "address", listener.Addr().String())
	return server, listener.Addr(), nil
}

// newLogger writes text to a terminal and JSON anywhere else.
func newLogger(output io.Writer) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(output, options))
	}
	return slog.New(slog.NewJSONHandler(output, options))
}
