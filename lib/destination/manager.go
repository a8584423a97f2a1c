// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package destination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/cwship/lib/transport"
)

// Existence is what the manager knows about the remote stream.
type Existence int

const (
	Unknown Existence = iota
	Creating
	Exists
	Failed
)

func (e Existence) String() string {
	switch e {
	case Unknown:
		return "unknown"
	case Creating:
		return "creating"
	case Exists:
		return "exists"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("existence(%d)", int(e))
	}
}

// State is a point-in-time copy of a stream's tracked state.
type State struct {
	Destination transport.Destination
	Token       string
	Existence   Existence
	LastError   string
}

// ManagerConfig holds the parameters for NewManager.
type ManagerConfig struct {
	// Transport creates the destination. Required.
	Transport transport.Transport

	// Destination is the resolved group and stream. Both names are
	// required.
	Destination transport.Destination

	// AutoCreate controls whether Ensure creates a missing group and
	// stream. When false, Ensure assumes they exist.
	AutoCreate bool

	// Logger receives creation events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Manager ensures the destination exists before the first write.
type Manager struct {
	transport   transport.Transport
	destination transport.Destination
	autoCreate  bool
	logger      *slog.Logger
	sequencer   Sequencer

	mu        sync.Mutex
	existence Existence
	lastError error
}

// NewManager validates config and returns a Manager in the Unknown
// state.
func NewManager(config ManagerConfig) (*Manager, error) {
	var errs []error
	if config.Transport == nil {
		errs = append(errs, errors.New("destination: Transport is required"))
	}
	if config.Destination.Group == "" {
		errs = append(errs, errors.New("destination: group name is required"))
	}
	if config.Destination.Stream == "" {
		errs = append(errs, errors.New("destination: stream name is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		transport:   config.Transport,
		destination: config.Destination,
		autoCreate:  config.AutoCreate,
		logger:      logger,
	}, nil
}

// Destination returns the managed group and stream.
func (m *Manager) Destination() transport.Destination { return m.destination }

// Sequencer returns the token holder for the managed stream.
func (m *Manager) Sequencer() *Sequencer { return &m.sequencer }

// Ensure makes sure the group and stream exist. It returns immediately
// once the stream is known to exist. On a creation failure the state
// becomes Failed and the error is returned; the next call tries again.
//
// A stream created by this call starts with no token. A stream that
// was already there may have been written by someone else, so its
// token is marked for probing.
func (m *Manager) Ensure(ctx context.Context) error {
	if m.currentExistence() == Exists {
		return nil
	}

	if !m.autoCreate {
		m.sequencer.Invalidate()
		m.setExistence(Exists, nil)
		return nil
	}

	m.setExistence(Creating, nil)
	created, err := m.transport.EnsureDestination(ctx, m.destination)
	if err != nil {
		err = fmt.Errorf("creating %s: %w", m.destination, err)
		m.setExistence(Failed, err)
		return err
	}

	if created {
		m.sequencer.Update("")
		m.logger.Info("log stream created",
			"group", m.destination.Group,
			"stream", m.destination.Stream,
		)
	} else {
		m.sequencer.Invalidate()
	}
	m.setExistence(Exists, nil)
	return nil
}

// Reset forgets that the stream exists, so the next Ensure recreates
// it. Called when the service reports the destination missing.
func (m *Manager) Reset() {
	m.sequencer.Invalidate()
	m.setExistence(Unknown, nil)
}

// State returns a snapshot for observers.
func (m *Manager) State() State {
	token, _ := m.sequencer.CurrentToken()
	m.mu.Lock()
	defer m.mu.Unlock()
	state := State{
		Destination: m.destination,
		Token:       token,
		Existence:   m.existence,
	}
	if m.lastError != nil {
		state.LastError = m.lastError.Error()
	}
	return state
}

func (m *Manager) currentExistence() Existence {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existence
}

func (m *Manager) setExistence(existence Existence, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existence = existence
	m.lastError = err
}
