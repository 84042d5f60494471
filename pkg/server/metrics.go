package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// bridgeMetrics are the websocket bridge's collectors. A nil
// *bridgeMetrics records nothing.
type bridgeMetrics struct {
	connections prometheus.Gauge
	inputs      *prometheus.CounterVec
	outputs     prometheus.Counter
	dropped     prometheus.Counter
}

func newBridgeMetrics(reg prometheus.Registerer) *bridgeMetrics {
	if reg == nil {
		return nil
	}
	factory := promauto.With(reg)
	return &bridgeMetrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "frp",
			Subsystem: "bridge",
			Name:      "connections",
			Help:      "Number of open websocket connections",
		}),
		inputs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frp",
			Subsystem: "bridge",
			Name:      "inputs_total",
			Help:      "Inputs received by result",
		}, []string{"result"}),
		outputs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frp",
			Subsystem: "bridge",
			Name:      "outputs_total",
			Help:      "Output frames queued to clients",
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frp",
			Subsystem: "bridge",
			Name:      "slow_clients_total",
			Help:      "Connections closed because their send queue filled up",
		}),
	}
}

func (m *bridgeMetrics) connOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *bridgeMetrics) connClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *bridgeMetrics) input(result string) {
	if m != nil {
		m.inputs.WithLabelValues(result).Inc()
	}
}

func (m *bridgeMetrics) output() {
	if m != nil {
		m.outputs.Inc()
	}
}

func (m *bridgeMetrics) slowClient() {
	if m != nil {
		m.dropped.Inc()
	}
}
