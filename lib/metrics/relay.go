// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay holds the relay daemon's collectors.
type Relay struct {
	requests        *prometheus.CounterVec
	recordsRelayed  prometheus.Counter
	requestDuration *prometheus.HistogramVec
}

// NewRelay creates the relay collectors and registers them with
// registerer.
func NewRelay(registerer prometheus.Registerer) (*Relay, error) {
	r := &Relay{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "Relay requests served, by action and result kind.",
		}, []string{"action", "result"}),
		recordsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "records_relayed_total",
			Help:      "Records in put requests the backend accepted.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "backend_duration_seconds",
			Help:      "Latency of backend calls made for relay requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"action"}),
	}
	for _, collector := range []prometheus.Collector{r.requests, r.recordsRelayed, r.requestDuration} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveRequest records one served request. result is "ok" or an
// error kind name; records counts only for accepted puts.
func (r *Relay) ObserveRequest(action, result string, records int, duration time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(action, result).Inc()
	r.requestDuration.WithLabelValues(action).Observe(duration.Seconds())
	if result == "ok" && records > 0 {
		r.recordsRelayed.Add(float64(records))
	}
}
