// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bureau-foundation/cwship/lib/batch"
	"github.com/bureau-foundation/cwship/lib/logevent"
	"github.com/bureau-foundation/cwship/lib/transport"
)

// Op names a Transport method for fault injection and call counts.
type Op int

const (
	OpEnsure Op = iota
	OpCurrentToken
	OpPut
	opCount
)

func (o Op) String() string {
	switch o {
	case OpEnsure:
		return "ensure"
	case OpCurrentToken:
		return "current_token"
	case OpPut:
		return "put"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

type stream struct {
	events   []logevent.Record
	sequence int64
	token    string
	accepted map[fingerprint]struct{}
}

// Service is a simulated log ingestion service. Create with New.
type Service struct {
	limits batch.Limits

	mu      sync.Mutex
	groups  map[string]map[string]*stream
	faults  [opCount][]error
	calls   [opCount]int
	delay   time.Duration
	batches int
}

var _ transport.Transport = (*Service)(nil)

// New returns an empty service enforcing limits on every write.
func New(limits batch.Limits) *Service {
	return &Service{
		limits: limits,
		groups: make(map[string]map[string]*stream),
	}
}

// InjectFault queues err as the result of the next call to op. Faults
// queue up: n calls to InjectFault fail the next n calls in order. A
// failed call has no other effect.
func (s *Service) InjectFault(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

// SetDelay makes every PutBatch wait d before doing anything. The wait
// ends early with the context's error if ctx is done first.
func (s *Service) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns how many times op was invoked, including failed calls.
func (s *Service) Calls(op Op) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Batches returns how many writes stored events.
func (s *Service) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// Events returns a copy of everything stored in the stream, in write
// order.
func (s *Service) Events(destination transport.Destination) []logevent.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.lookup(destination)
	if target == nil {
		return nil
	}
	return append([]logevent.Record(nil), target.events...)
}

// CreateStream creates the group and stream without going through the
// Transport interface, for tests that start with an existing stream.
func (s *Service) CreateStream(destination transport.Destination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.create(destination)
}

// DeleteStream removes the stream and its events.
func (s *Service) DeleteStream(destination transport.Destination) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if streams, ok := s.groups[destination.Group]; ok {
		delete(streams, destination.Stream)
	}
}

// AppendExternal stores records as if another writer had put them,
// advancing the stream's token behind the caller's back.
func (s *Service) AppendExternal(destination transport.Destination, records []logevent.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.lookup(destination)
	if target == nil {
		target = s.create(destination)
	}
	s.store(target, target.token, records)
}

// EnsureDestination creates the group and stream if missing.
func (s *Service) EnsureDestination(ctx context.Context, destination transport.Destination) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(OpEnsure); err != nil {
		return false, err
	}
	if s.lookup(destination) != nil {
		return false, nil
	}
	s.create(destination)
	return true, nil
}

// CurrentToken returns the stream's current token.
func (s *Service) CurrentToken(ctx context.Context, destination transport.Destination) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(OpCurrentToken); err != nil {
		return "", err
	}
	target := s.lookup(destination)
	if target == nil {
		return "", transport.Errorf(transport.KindNotFound, "stream %s does not exist", destination)
	}
	return target.token, nil
}

// PutBatch validates and stores records.
func (s *Service) PutBatch(ctx context.Context, destination transport.Destination, records []logevent.Record, token string) (string, error) {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFault(OpPut); err != nil {
		return "", err
	}
	target := s.lookup(destination)
	if target == nil {
		return "", transport.Errorf(transport.KindNotFound, "stream %s does not exist", destination)
	}
	if err := s.validate(records); err != nil {
		return "", err
	}
	if _, ok := target.accepted[fingerprintBatch(token, records)]; ok {
		return "", &transport.Error{
			Kind:          transport.KindAlreadyAccepted,
			ExpectedToken: target.token,
			Err:           fmt.Errorf("batch already accepted by %s", destination),
		}
	}
	if token != target.token {
		return "", &transport.Error{
			Kind:          transport.KindInvalidToken,
			ExpectedToken: target.token,
			Err:           fmt.Errorf("sequence token %q is not the expected %q", token, target.token),
		}
	}
	s.store(target, token, records)
	s.batches++
	return target.token, nil
}

func (s *Service) validate(records []logevent.Record) error {
	if len(records) == 0 {
		return transport.Errorf(transport.KindOther, "batch is empty")
	}
	if len(records) > s.limits.MaxCount {
		return transport.Errorf(transport.KindOther, "batch has %d events, limit %d", len(records), s.limits.MaxCount)
	}
	size := 0
	for index, record := range records {
		size += len(record.Payload) + logevent.EventOverhead
		if index > 0 && record.Timestamp < records[index-1].Timestamp {
			return transport.Errorf(transport.KindOther, "events are not in chronological order at index %d", index)
		}
	}
	if size > s.limits.MaxBytes {
		return transport.Errorf(transport.KindOther, "batch is %d bytes, limit %d", size, s.limits.MaxBytes)
	}
	span := time.Duration(records[len(records)-1].Timestamp-records[0].Timestamp) * time.Millisecond
	if s.limits.MaxSpan > 0 && span > s.limits.MaxSpan {
		return transport.Errorf(transport.KindOther, "batch spans %v, limit %v", span, s.limits.MaxSpan)
	}
	return nil
}

// store appends records, remembers the batch fingerprint under the
// token it was sent with, and issues the next token. Caller holds mu.
func (s *Service) store(target *stream, sentToken string, records []logevent.Record) {
	target.accepted[fingerprintBatch(sentToken, records)] = struct{}{}
	target.events = append(target.events, records...)
	target.sequence++
	target.token = strconv.FormatInt(target.sequence, 10)
}

// takeFault counts the call and pops the next scripted fault. Caller
// holds mu.
func (s *Service) takeFault(op Op) error {
	s.calls[op]++
	if len(s.faults[op]) == 0 {
		return nil
	}
	err := s.faults[op][0]
	s.faults[op] = s.faults[op][1:]
	return err
}

func (s *Service) lookup(destination transport.Destination) *stream {
	streams, ok := s.groups[destination.Group]
	if !ok {
		return nil
	}
	return streams[destination.Stream]
}

func (s *Service) create(destination transport.Destination) *stream {
	streams, ok := s.groups[destination.Group]
	if !ok {
		streams = make(map[string]*stream)
		s.groups[destination.Group] = streams
	}
	target, ok := streams[destination.Stream]
	if !ok {
		target = &stream{accepted: make(map[fingerprint]struct{})}
		streams[destination.Stream] = target
	}
	return target
}
