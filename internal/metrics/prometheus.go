// Package metrics wraps Prometheus collectors for the bridge engine:
// commands dispatched/completed, queue depth, batch callbacks emitted,
// and vendor-store errors by kind, exposed via CounterVec/HistogramVec/
// Gauge/GaugeFunc collectors and an http.Handler for /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps the engine's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	commandsTotal    *prometheus.CounterVec
	commandErrors    *prometheus.CounterVec
	commandDuration  *prometheus.HistogramVec
	queueDepth       prometheus.GaugeFunc
	batchesEmitted   *prometheus.CounterVec
	vendorErrors     *prometheus.CounterVec
	liveConnections  prometheus.Gauge
	liveTables       prometheus.Gauge
}

var defaultBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

// New constructs a Metrics instance backed by its own registry, so the
// engine never depends on prometheus's process-wide default registry.
func New(namespace string, queueDepthFn func() float64) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands accepted by the dispatcher, by tag.",
		}, []string{"tag"}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      "Commands that completed with a non-success reply, by tag.",
		}, []string{"tag"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_ms",
			Help:      "Command handling duration in milliseconds, by tag.",
			Buckets:   defaultBuckets,
		}, []string{"tag"}),
		batchesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_emitted_total",
			Help:      "Record batches delivered to a host batch callback, by tag.",
		}, []string{"tag"}),
		vendorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vendor_errors_total",
			Help:      "Errors returned by the vendor store, by operation.",
		}, []string{"operation"}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Currently live connection handles.",
		}),
		liveTables: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_tables",
			Help:      "Currently live table handles.",
		}),
	}

	if queueDepthFn != nil {
		m.queueDepth = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Commands currently buffered in the dispatcher's queue.",
		}, queueDepthFn)
		reg.MustRegister(m.queueDepth)
	}

	reg.MustRegister(
		m.commandsTotal,
		m.commandErrors,
		m.commandDuration,
		m.batchesEmitted,
		m.vendorErrors,
		m.liveConnections,
		m.liveTables,
	)

	return m
}

// ObserveCommand records one completed command's outcome and duration.
func (m *Metrics) ObserveCommand(tag string, dur time.Duration, success bool) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(tag).Inc()
	m.commandDuration.WithLabelValues(tag).Observe(float64(dur.Milliseconds()))
	if !success {
		m.commandErrors.WithLabelValues(tag).Inc()
	}
}

// ObserveBatchEmitted records one record batch delivered through a
// streaming callback for the given command tag.
func (m *Metrics) ObserveBatchEmitted(tag string) {
	if m == nil {
		return
	}
	m.batchesEmitted.WithLabelValues(tag).Inc()
}

// ObserveVendorError records one error surfaced by the vendor store for
// the given logical operation name.
func (m *Metrics) ObserveVendorError(operation string) {
	if m == nil {
		return
	}
	m.vendorErrors.WithLabelValues(operation).Inc()
}

// SetLiveConnections reports the current connection registry size.
func (m *Metrics) SetLiveConnections(n int) {
	if m == nil {
		return
	}
	m.liveConnections.Set(float64(n))
}

// SetLiveTables reports the current table registry size.
func (m *Metrics) SetLiveTables(n int) {
	if m == nil {
		return
	}
	m.liveTables.Set(float64(n))
}

// Handler returns the http.Handler serving this Metrics' Prometheus
// exposition page.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
