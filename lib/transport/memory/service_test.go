// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/cwship/lib/batch"
	"github.com/bureau-foundation/cwship/lib/logevent"
	"github.com/bureau-foundation/cwship/lib/transport"
)

var (
	destination = transport.Destination{Group: "g", Stream: "s"}
	epoch       = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
)

func records(messages ...string) []logevent.Record {
	var out []logevent.Record
	for index, message := range messages {
		out = append(out, logevent.NewRecord(epoch.Add(time.Duration(index)*time.Second), []byte(message)))
	}
	return out
}

func TestTokenProtocol(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service := New(batch.DefaultLimits())

	created, err := service.EnsureDestination(ctx, destination)
	if err != nil || !created {
		t.Fatalf("EnsureDestination = %v, %v", created, err)
	}
	created, err = service.EnsureDestination(ctx, destination)
	if err != nil || created {
		t.Fatalf("second EnsureDestination = %v, %v, want false, nil", created, err)
	}

	first, err := service.PutBatch(ctx, destination, records("a"), "")
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	_, err = service.PutBatch(ctx, destination, records("b"), "")
	if transport.KindOf(err) != transport.KindInvalidToken {
		t.Fatalf("stale token error = %v", err)
	}
	if expected, _ := transport.ExpectedTokenOf(err); expected != first {
		t.Errorf("expected token = %q, want %q", expected, first)
	}

	current, err := service.CurrentToken(ctx, destination)
	if err != nil || current != first {
		t.Fatalf("CurrentToken = %q, %v", current, err)
	}
	if _, err := service.PutBatch(ctx, destination, records("b"), current); err != nil {
		t.Fatalf("put with current token: %v", err)
	}
	if got := len(service.Events(destination)); got != 2 {
		t.Errorf("stored %d events, want 2", got)
	}
}

func TestDuplicateBatchIsAlreadyAccepted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service := New(batch.DefaultLimits())
	service.CreateStream(destination)

	batchRecords := records("x", "y")
	if _, err := service.PutBatch(ctx, destination, batchRecords, ""); err != nil {
		t.Fatal(err)
	}
	_, err := service.PutBatch(ctx, destination, batchRecords, "")
	if transport.KindOf(err) != transport.KindAlreadyAccepted {
		t.Fatalf("resend error = %v, want already accepted", err)
	}
	if got := len(service.Events(destination)); got != 2 {
		t.Errorf("duplicate stored: %d events", got)
	}
	if service.Batches() != 1 {
		t.Errorf("Batches = %d, want 1", service.Batches())
	}
}

func TestPutValidatesBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service := New(batch.Limits{MaxBytes: 1000, MaxCount: 2, MaxSpan: time.Minute})
	service.CreateStream(destination)

	unsorted := []logevent.Record{
		logevent.NewRecord(epoch.Add(time.Second), []byte("late")),
		logevent.NewRecord(epoch, []byte("early")),
	}
	wide := []logevent.Record{
		logevent.NewRecord(epoch, []byte("a")),
		logevent.NewRecord(epoch.Add(time.Hour), []byte("b")),
	}
	for name, bad := range map[string][]logevent.Record{
		"empty":    nil,
		"count":    records("a", "b", "c"),
		"unsorted": unsorted,
		"span":     wide,
		"bytes":    {logevent.NewRecord(epoch, make([]byte, 1000))},
	} {
		_, err := service.PutBatch(ctx, destination, bad, "")
		if transport.Classify(err).Class != transport.Fatal {
			t.Errorf("%s: error %v is not fatal", name, err)
		}
	}
}

func TestMissingStream(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service := New(batch.DefaultLimits())
	if _, err := service.PutBatch(ctx, destination, records("a"), ""); transport.KindOf(err) != transport.KindNotFound {
		t.Errorf("put to missing stream = %v", err)
	}
	if _, err := service.CurrentToken(ctx, destination); transport.KindOf(err) != transport.KindNotFound {
		t.Errorf("token of missing stream = %v", err)
	}

	service.CreateStream(destination)
	service.DeleteStream(destination)
	if service.Events(destination) != nil {
		t.Error("deleted stream still has events")
	}
}

func TestInjectedFaultsAreConsumedInOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service := New(batch.DefaultLimits())
	service.CreateStream(destination)

	first := transport.Errorf(transport.KindThrottled, "one")
	second := errors.New("two")
	service.InjectFault(OpPut, first)
	service.InjectFault(OpPut, second)

	if _, err := service.PutBatch(ctx, destination, records("a"), ""); !errors.Is(err, first) {
		t.Errorf("first call = %v", err)
	}
	if _, err := service.PutBatch(ctx, destination, records("a"), ""); !errors.Is(err, second) {
		t.Errorf("second call = %v", err)
	}
	if _, err := service.PutBatch(ctx, destination, records("a"), ""); err != nil {
		t.Errorf("third call = %v", err)
	}
	if service.Calls(OpPut) != 3 {
		t.Errorf("Calls(put) = %d, want 3", service.Calls(OpPut))
	}
}

func TestAppendExternalAdvancesToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service := New(batch.DefaultLimits())
	service.CreateStream(destination)

	service.AppendExternal(destination, records("other writer"))
	if _, err := service.PutBatch(ctx, destination, records("mine"), ""); transport.KindOf(err) != transport.KindInvalidToken {
		t.Errorf("put after external write = %v, want invalid token", err)
	}
}

func TestDelayHonorsContext(t *testing.T) {
	t.Parallel()
	service := New(batch.DefaultLimits())
	service.CreateStream(destination)
	service.SetDelay(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := service.PutBatch(ctx, destination, records("a"), "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("delayed put = %v, want deadline exceeded", err)
	}
	if len(service.Events(destination)) != 0 {
		t.Error("timed out put stored events")
	}
}
