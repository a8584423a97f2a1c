// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	t.Parallel()
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	m.RecordEnqueued()
	m.RecordEnqueued()
	m.RecordRejected("too_large")
	m.BatchDelivered(7)
	m.BatchDropped("other", 3)
	m.Retry("throttled")
	m.Retry("throttled")
	m.SetPending(4, 400)
	m.ObservePut(20 * time.Millisecond)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"enqueued", testutil.ToFloat64(m.recordsEnqueued), 2},
		{"rejected", testutil.ToFloat64(m.recordsRejected.WithLabelValues("too_large")), 1},
		{"delivered records", testutil.ToFloat64(m.recordsDelivered), 7},
		{"delivered batches", testutil.ToFloat64(m.batchesDelivered), 1},
		{"dropped batches", testutil.ToFloat64(m.batchesDropped.WithLabelValues("other")), 1},
		{"dropped records", testutil.ToFloat64(m.recordsDropped), 3},
		{"retries", testutil.ToFloat64(m.retries.WithLabelValues("throttled")), 2},
		{"pending records", testutil.ToFloat64(m.pendingRecords), 4},
		{"pending bytes", testutil.ToFloat64(m.pendingBytes), 400},
	}
	for _, check := range checks {
		if check.got != check.want {
			t.Errorf("%s = %v, want %v", check.name, check.got, check.want)
		}
	}
	if count := testutil.CollectAndCount(m.putLatency); count != 1 {
		t.Errorf("put latency series = %d, want 1", count)
	}
}

func TestDuplicateRegistrationFails(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	if _, err := New(registry); err != nil {
		t.Fatal(err)
	}
	if _, err := New(registry); err == nil {
		t.Error("second New on the same registry succeeded")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.RecordEnqueued()
	m.RecordRejected("x")
	m.BatchDelivered(1)
	m.BatchDropped("x", 1)
	m.Retry("x")
	m.SetPending(1, 1)
	m.ObservePut(time.Second)
}

func TestRelayCounters(t *testing.T) {
	t.Parallel()
	r, err := NewRelay(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	r.ObserveRequest("put", "ok", 12, 5*time.Millisecond)
	r.ObserveRequest("put", "throttled", 12, time.Millisecond)
	r.ObserveRequest("ensure", "ok", 0, time.Millisecond)

	if got := testutil.ToFloat64(r.requests.WithLabelValues("put", "ok")); got != 1 {
		t.Errorf("put ok = %v", got)
	}
	if got := testutil.ToFloat64(r.requests.WithLabelValues("put", "throttled")); got != 1 {
		t.Errorf("put throttled = %v", got)
	}
	if got := testutil.ToFloat64(r.recordsRelayed); got != 12 {
		t.Errorf("records relayed = %v, want 12", got)
	}
	if count := testutil.CollectAndCount(r.requestDuration); count != 2 {
		t.Errorf("duration series = %d, want 2", count)
	}

	var disabled *Relay
	disabled.ObserveRequest("put", "ok", 1, time.Millisecond)
}
