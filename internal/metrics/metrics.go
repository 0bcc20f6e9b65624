// Package metrics holds the Prometheus collectors exported by the bridge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mqview"

// Metrics contains bridge metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	MessagesReceived  *prometheus.CounterVec
	PayloadBytes      *prometheus.CounterVec
	PayloadsTruncated *prometheus.CounterVec
	MessagesPublished *prometheus.CounterVec
	BrokerConnected   *prometheus.GaugeVec
	PeersConnected    prometheus.Gauge
	FramesReceived    *prometheus.CounterVec
	FramesDropped     prometheus.Counter

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "messages_received_total",
				Help:      "Total number of MQTT messages received per broker",
			},
			[]string{"broker"},
		),
		PayloadBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "payload_bytes_total",
				Help:      "Total payload bytes received per broker, before truncation",
			},
			[]string{"broker"},
		),
		PayloadsTruncated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "payloads_truncated_total",
				Help:      "Payloads replaced because they exceeded the size limit",
			},
			[]string{"broker"},
		),
		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "messages_published_total",
				Help:      "Total number of messages published on behalf of peers",
			},
			[]string{"broker"},
		),
		BrokerConnected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "broker_connected",
				Help:      "Broker connection status (0=disconnected, 1=connected)",
			},
			[]string{"broker"},
		),
		PeersConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "peers_connected",
				Help:      "Number of connected websocket peers",
			},
		),
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "frames_received_total",
				Help:      "JSON-RPC frames received from peers by method",
			},
			[]string{"method"},
		),
		FramesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ws",
				Name:      "frames_dropped_total",
				Help:      "Outbound frames dropped because a peer was too slow",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.MessagesReceived,
		m.PayloadBytes,
		m.PayloadsTruncated,
		m.MessagesPublished,
		m.BrokerConnected,
		m.PeersConnected,
		m.FramesReceived,
		m.FramesDropped,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordMessage counts a received message of size bytes.
func (m *Metrics) RecordMessage(broker string, size int, truncated bool) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(broker).Inc()
	m.PayloadBytes.WithLabelValues(broker).Add(float64(size))
	if truncated {
		m.PayloadsTruncated.WithLabelValues(broker).Inc()
	}
}

// RecordPublish counts a message published to broker.
func (m *Metrics) RecordPublish(broker string) {
	if m == nil {
		return
	}
	m.MessagesPublished.WithLabelValues(broker).Inc()
}

// RecordBrokerStatus updates the connection gauge of broker.
func (m *Metrics) RecordBrokerStatus(broker string, connected bool) {
	if m == nil {
		return
	}
	value := 0.0
	if connected {
		value = 1.0
	}
	m.BrokerConnected.WithLabelValues(broker).Set(value)
}

// ForgetBroker drops every series labelled with broker.
func (m *Metrics) ForgetBroker(broker string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"broker": broker}
	m.MessagesReceived.Delete(labels)
	m.PayloadBytes.Delete(labels)
	m.PayloadsTruncated.Delete(labels)
	m.MessagesPublished.Delete(labels)
	m.BrokerConnected.Delete(labels)
}

// RecordPeers sets the number of connected peers.
func (m *Metrics) RecordPeers(n int) {
	if m == nil {
		return
	}
	m.PeersConnected.Set(float64(n))
}

// RecordFrame counts an inbound frame by method.
func (m *Metrics) RecordFrame(method string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(method).Inc()
}

// RecordDrop counts a dropped outbound frame.
func (m *Metrics) RecordDrop() {
	if m == nil {
		return
	}
	m.FramesDropped.Inc()
}
