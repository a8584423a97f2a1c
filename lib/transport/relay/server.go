// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/cwship/lib/codec"
	"github.com/bureau-foundation/cwship/lib/metrics"
	"github.com/bureau-foundation/cwship/lib/transport"
)

const (
	// readTimeout is how long the server waits for a request after
	// accepting a connection.
	readTimeout = 30 * time.Second

	// writeTimeout bounds writing the response.
	writeTimeout = 10 * time.Second

	// DefaultBackendTimeout bounds each forwarded call.
	DefaultBackendTimeout = 30 * time.Second
)

// ServerConfig holds the parameters for NewServer.
type ServerConfig struct {
	// Network is "unix" or "tcp".
	Network string

	// Address is the socket path or host:port.
	Address string

	// Backend receives the forwarded calls. Required.
	Backend transport.Transport

	// BackendTimeout bounds each forwarded call. Defaults to
	// DefaultBackendTimeout.
	BackendTimeout time.Duration

	Logger *slog.Logger

	// Metrics may be nil.
	Metrics *metrics.Relay
}

// Server forwards relay requests to a backing Transport.
type Server struct {
	network        string
	address        string
	backend        transport.Transport
	backendTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Relay

	ready    chan struct{}
	mu       sync.Mutex
	listener net.Listener

	activeConnections sync.WaitGroup
}

// NewServer validates config. Call Serve to start listening.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Network != "unix" && config.Network != "tcp" {
		return nil, fmt.Errorf("relay: network must be unix or tcp, got %q", config.Network)
	}
	if config.Address == "" {
		return nil, errors.New("relay: Address is required")
	}
	if config.Backend == nil {
		return nil, errors.New("relay: Backend is required")
	}
	if config.BackendTimeout <= 0 {
		config.BackendTimeout = DefaultBackendTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		network:        config.Network,
		address:        config.Address,
		backend:        config.Backend,
		backendTimeout: config.BackendTimeout,
		logger:         config.Logger,
		metrics:        config.Metrics,
		ready:          make(chan struct{}),
	}, nil
}

// Ready is closed once the server is accepting connections.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the listening address once Ready is closed.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight requests to finish. A stale Unix socket file at Address is
// removed first, and the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if s.network == "unix" {
		if err := os.Remove(s.address); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale socket %s: %w", s.address, err)
		}
	}

	listener, err := net.Listen(s.network, s.address)
	if err != nil {
		return fmt.Errorf("listening on %s %s: %w", s.network, s.address, err)
	}
	defer func() {
		listener.Close()
		if s.network == "unix" {
			os.Remove(s.address)
		}
	}()

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	close(s.ready)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("relay listening", "network", s.network, "address", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection serves one request. The backend call is detached
// from ctx so that a shutdown does not abort a put half way.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	var incoming request
	if err := codec.NewDecoder(io.LimitReader(conn, maxMessageSize)).Decode(&incoming); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeResponse(conn, failure(transport.Errorf(transport.KindOther, "invalid request: %v", err)))
		return
	}

	callContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.backendTimeout)
	defer cancel()
	destination := transport.Destination{Group: incoming.Group, Stream: incoming.Stream}

	start := time.Now()
	var reply response
	switch incoming.Action {
	case actionEnsure:
		created, err := s.backend.EnsureDestination(callContext, destination)
		reply = result(err)
		reply.Created = created

	case actionToken:
		token, err := s.backend.CurrentToken(callContext, destination)
		reply = result(err)
		reply.Token = token

	case actionPut:
		records, err := decodeEvents(&incoming)
		if err != nil {
			reply = failure(transport.Errorf(transport.KindOther, "invalid put: %v", err))
			break
		}
		next, err := s.backend.PutBatch(callContext, destination, records, incoming.Token)
		reply = result(err)
		reply.Token = next

	default:
		reply = failure(transport.Errorf(transport.KindOther, "unknown action %q", incoming.Action))
	}

	outcome := "ok"
	if !reply.OK {
		outcome = reply.Kind
	}
	s.metrics.ObserveRequest(actionLabel(incoming.Action), outcome, incoming.EventCount, time.Since(start))

	if !reply.OK {
		s.logger.Debug("relay call failed",
			"action", incoming.Action,
			"destination", destination.String(),
			"kind", reply.Kind,
			"error", reply.Error,
		)
	}
	s.writeResponse(conn, reply)
}

// actionLabel bounds the metric label to the known actions.
func actionLabel(action string) string {
	switch action {
	case actionEnsure, actionToken, actionPut:
		return action
	default:
		return "unknown"
	}
}

func (s *Server) writeResponse(conn net.Conn, reply response) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(reply); err != nil {
		s.logger.Debug("failed to write relay response", "error", err)
	}
}

func result(err error) response {
	if err != nil {
		return failure(err)
	}
	return response{OK: true}
}

// failure carries the error's kind and expected token to the client.
// Context expiry on the backend is reported as throttling so the
// client backs off and resends rather than dropping the batch.
func failure(err error) response {
	kind := transport.KindOf(err)
	if kind == transport.KindOther && errors.Is(err, context.DeadlineExceeded) {
		kind = transport.KindThrottled
	}
	expected, _ := transport.ExpectedTokenOf(err)
	return response{
		Error:         err.Error(),
		Kind:          kind.String(),
		ExpectedToken: expected,
	}
}
