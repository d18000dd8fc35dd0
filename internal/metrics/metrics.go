// Package metrics exposes the chat core's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	connections       prometheus.Gauge
	onlineUsers       prometheus.Gauge
	messagesSent      *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	eventErrors       *prometheus.CounterVec
	rateLimited       prometheus.Counter
	presencePruned    prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "duochat",
			Name:      "ws_connections",
			Help:      "Number of open websocket connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "duochat",
			Name:      "online_users",
			Help:      "Number of users with at least one open connection.",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duochat",
			Name:      "messages_sent_total",
			Help:      "Messages persisted, by message type.",
		}, []string{"type"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duochat",
			Name:      "status_transitions_total",
			Help:      "Delivery status transitions applied, by target status.",
		}, []string{"status"}),
		eventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duochat",
			Name:      "event_errors_total",
			Help:      "Errors reported back to clients, by error kind.",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duochat",
			Name:      "ws_events_rate_limited_total",
			Help:      "Inbound websocket events dropped by the rate limiter.",
		}),
		presencePruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "duochat",
			Name:      "presence_pruned_total",
			Help:      "Offline presence entries removed by the janitor.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.connections,
			m.onlineUsers,
			m.messagesSent,
			m.statusTransitions,
			m.eventErrors,
			m.rateLimited,
			m.presencePruned,
		)
	}
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) SetOnlineUsers(n int) {
	if m != nil {
		m.onlineUsers.Set(float64(n))
	}
}

func (m *Metrics) MessageSent(msgType string) {
	if m != nil {
		m.messagesSent.WithLabelValues(msgType).Inc()
	}
}

func (m *Metrics) StatusTransition(status string) {
	if m != nil {
		m.statusTransitions.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) EventError(kind string) {
	if m != nil {
		m.eventErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) PresencePruned(n int) {
	if m != nil && n > 0 {
		m.presencePruned.Add(float64(n))
	}
}
