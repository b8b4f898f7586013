package controller

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds dispatch instrumentation. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	events     *prometheus.CounterVec
	failures   *prometheus.CounterVec
	deliveries prometheus.Counter
	duration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ezagent",
				Subsystem: "controller",
				Name:      "events_total",
				Help:      "Events received by the controller",
			},
			[]string{"type", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ezagent",
				Subsystem: "controller",
				Name:      "handler_failures_total",
				Help:      "Handler and agent failures swallowed during dispatch",
			},
			[]string{"stage"},
		),
		deliveries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ezagent",
				Subsystem: "controller",
				Name:      "agent_deliveries_total",
				Help:      "Agent notifications attempted during broadcast",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "ezagent",
				Subsystem: "controller",
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent handling and broadcasting one event",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.events, m.failures, m.deliveries, m.duration)
	}
	return m
}

// Unregistered types arrive from callers, so they share a single label.
func typeLabel(eventType string, registered bool) string {
	if registered {
		return eventType
	}
	return "unregistered"
}

func (m *Metrics) event(eventType, outcome string, registered bool) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(typeLabel(eventType, registered), outcome).Inc()
}

func (m *Metrics) failure(stage Stage) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(string(stage)).Inc()
}

func (m *Metrics) delivery() {
	if m == nil {
		return
	}
	m.deliveries.Inc()
}

func (m *Metrics) observe(seconds float64) {
	if m == nil {
		return
	}
	m.duration.Observe(seconds)
}
