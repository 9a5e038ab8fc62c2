// Package metrics holds the storefront's Prometheus collectors. Every recording method
// is safe on a nil *Metrics so components can run without a registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	cartOps             *prometheus.CounterVec
	checkoutTransitions *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	visitors            prometheus.Gauge
	eventsPublished     *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		cartOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "operations_total",
			Help:      "Cart operations by operation, cart mode and result.",
		}, []string{"op", "mode", "result"}),
		checkoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "transitions_total",
			Help:      "Checkout step transitions.",
		}, []string{"from", "to"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Gateway request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		visitors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_visitors",
			Help:      "Visitor workspaces currently held in memory.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events handed to the publisher.",
		}, []string{"type", "result"}),
	}
	reg.MustRegister(
		m.cartOps,
		m.checkoutTransitions,
		m.httpDuration,
		m.visitors,
		m.eventsPublished,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CartOperation(op, mode string, err error) {
	if m == nil {
		return
	}
	m.cartOps.WithLabelValues(op, mode, result(err)).Inc()
}

func (m *Metrics) CheckoutTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.checkoutTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) SetVisitors(n int) {
	if m == nil {
		return
	}
	m.visitors.Set(float64(n))
}

func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
