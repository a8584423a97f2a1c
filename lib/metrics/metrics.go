// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cwship"

// Metrics holds the pipeline's collectors.
type Metrics struct {
	recordsEnqueued  prometheus.Counter
	recordsRejected  *prometheus.CounterVec
	recordsDelivered prometheus.Counter
	batchesDelivered prometheus.Counter
	batchesDropped   *prometheus.CounterVec
	recordsDropped   prometheus.Counter
	retries          *prometheus.CounterVec
	pendingRecords   prometheus.Gauge
	pendingBytes     prometheus.Gauge
	putLatency       prometheus.Histogram
}

// New creates the collectors and registers them with registerer. It
// fails if any collector is already registered.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		recordsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_enqueued_total",
			Help:      "Records accepted into the pending queue.",
		}),
		recordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Records refused at enqueue time, by reason.",
		}, []string{"reason"}),
		recordsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_delivered_total",
			Help:      "Records stored by the ingestion service.",
		}),
		batchesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_delivered_total",
			Help:      "Batches stored by the ingestion service.",
		}),
		batchesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_dropped_total",
			Help:      "Batches abandoned after a fatal error, by error kind.",
		}, []string{"kind"}),
		recordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Records in abandoned batches.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Delivery attempts repeated after a retryable error, by error kind.",
		}, []string{"kind"}),
		pendingRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_records",
			Help:      "Records waiting in the pending queue.",
		}),
		pendingBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_bytes",
			Help:      "Accounted size of records waiting in the pending queue.",
		}),
		putLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "put_duration_seconds",
			Help:      "Latency of individual PutBatch calls.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	collectors := []prometheus.Collector{
		m.recordsEnqueued, m.recordsRejected, m.recordsDelivered,
		m.batchesDelivered, m.batchesDropped, m.recordsDropped,
		m.retries, m.pendingRecords, m.pendingBytes, m.putLatency,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordEnqueued counts one accepted record.
func (m *Metrics) RecordEnqueued() {
	if m == nil {
		return
	}
	m.recordsEnqueued.Inc()
}

// RecordRejected counts one refused record.
func (m *Metrics) RecordRejected(reason string) {
	if m == nil {
		return
	}
	m.recordsRejected.WithLabelValues(reason).Inc()
}

// BatchDelivered counts a stored batch.
func (m *Metrics) BatchDelivered(records int) {
	if m == nil {
		return
	}
	m.batchesDelivered.Inc()
	m.recordsDelivered.Add(float64(records))
}

// BatchDropped counts an abandoned batch.
func (m *Metrics) BatchDropped(kind string, records int) {
	if m == nil {
		return
	}
	m.batchesDropped.WithLabelValues(kind).Inc()
	m.recordsDropped.Add(float64(records))
}

// Retry counts a repeated attempt.
func (m *Metrics) Retry(kind string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(kind).Inc()
}

// SetPending publishes the queue depth.
func (m *Metrics) SetPending(records, bytes int) {
	if m == nil {
		return
	}
	m.pendingRecords.Set(float64(records))
	m.pendingBytes.Set(float64(bytes))
}

// ObservePut records the duration of one PutBatch call.
func (m *Metrics) ObservePut(duration time.Duration) {
	if m == nil {
		return
	}
	m.putLatency.Observe(duration.Seconds())
}
