// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the application counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	EventsRecorded      *prometheus.CounterVec
	Verifications       *prometheus.CounterVec
	NotificationsFailed prometheus.Counter
	HubConnections      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conference",
			Name:      "events_recorded_total",
			Help:      "Daily event recording attempts by kind and outcome.",
		}, []string{"kind", "outcome"}),
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conference",
			Name:      "verifications_total",
			Help:      "Verification calls by outcome.",
		}, []string{"outcome"}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conference",
			Name:      "notifications_failed_total",
			Help:      "Notification dispatches that returned an error.",
		}),
		HubConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "conference",
			Name:      "hub_connections",
			Help:      "Open websocket connections.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.EventsRecorded, m.Verifications, m.NotificationsFailed, m.HubConnections)
	}
	return m
}

// EventRecorded counts one recording attempt.
func (m *Metrics) EventRecorded(kind, outcome string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(kind, outcome).Inc()
}

// Verified counts one verification call.
func (m *Metrics) Verified(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

// NotificationFailed counts one failed dispatch.
func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.NotificationsFailed.Inc()
}

// ConnOpened increments the open connection gauge.
func (m *Metrics) ConnOpened() {
	if m != nil {
		m.HubConnections.Inc()
	}
}

// ConnClosed decrements the open connection gauge.
func (m *Metrics) ConnClosed() {
	if m != nil {
		m.HubConnections.Dec()
	}
}
