package chat

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the chat core's Prometheus collectors.
// A nil *Metrics is valid and turns every method into a no-op, which keeps
// tests and dev wiring free of registry plumbing.
type Metrics struct {
	appends        *prometheus.CounterVec
	broadcasts     *prometheus.CounterVec
	broadcastDrops *prometheus.CounterVec
	wsConnections  prometheus.Gauge
}

// NewMetrics constructs and registers the chat collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		appends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gather",
			Subsystem: "chat",
			Name:      "appends_total",
			Help:      "Message append attempts by result (stored, duplicate, error).",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gather",
			Subsystem: "chat",
			Name:      "broadcasts_total",
			Help:      "Room broadcasts by envelope type.",
		}, []string{"type"}),
		broadcastDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gather",
			Subsystem: "chat",
			Name:      "broadcast_drops_total",
			Help:      "Per-member broadcast drops under backpressure, by envelope type.",
		}, []string{"type"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gather",
			Subsystem: "chat",
			Name:      "ws_connections",
			Help:      "Live websocket sessions.",
		}),
	}

	reg.MustRegister(m.appends, m.broadcasts, m.broadcastDrops, m.wsConnections)
	return m
}

// IncAppend counts an append attempt by result.
func (m *Metrics) IncAppend(result string) {
	if m == nil {
		return
	}
	m.appends.WithLabelValues(result).Inc()
}

// IncBroadcasts counts one room broadcast.
func (m *Metrics) IncBroadcasts(envType string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(envType).Inc()
}

// IncBroadcastDrops counts one dropped per-member send.
func (m *Metrics) IncBroadcastDrops(envType string) {
	if m == nil {
		return
	}
	m.broadcastDrops.WithLabelValues(envType).Inc()
}

// ConnOpened tracks a new websocket session.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

// ConnClosed tracks a finished websocket session.
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}
