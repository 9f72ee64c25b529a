// Package metrics holds the Prometheus collectors shared by every service.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parking"

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultDropped  = "dropped"
	ResultRejected = "rejected"
)

// Metrics bundles the collectors and the registry they are registered on.
type Metrics struct {
	Registry        *prometheus.Registry
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec
	BusConnected    prometheus.Gauge
}

// New creates a registry with the bus collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to the parking exchange.",
		}, []string{"routing_key", "result"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Deliveries processed by consumers.",
		}, []string{"queue", "routing_key", "result"}),
		BusConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bus_connected",
			Help:      "1 while the broker session is connected.",
		}),
	}
	m.Registry.MustRegister(
		m.EventsPublished,
		m.EventsConsumed,
		m.BusConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Published records the outcome of a publish attempt. Safe on a nil receiver.
func (m *Metrics) Published(routingKey string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.EventsPublished.WithLabelValues(routingKey, result).Inc()
}

// Consumed records how a delivery was settled. Safe on a nil receiver.
func (m *Metrics) Consumed(queue, routingKey, result string) {
	if m == nil {
		return
	}
	m.EventsConsumed.WithLabelValues(queue, routingKey, result).Inc()
}

// SetConnected flips the bus gauge. Safe on a nil receiver.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.BusConnected.Set(1)
		return
	}
	m.BusConnected.Set(0)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}
