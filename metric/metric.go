// Package metric defines the Prometheus instrumentation for the camera
// connection stack.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all connection-stack metrics.
type Metrics struct {
	// Connection lifecycle
	ConnectsTotal    *prometheus.CounterVec
	DisconnectsTotal *prometheus.CounterVec
	Connected        prometheus.Gauge
	ImageReady       prometheus.Gauge

	// Discovery
	ScansTotal        *prometheus.CounterVec
	DevicesRegistered prometheus.Gauge

	// Heartbeat
	HeartbeatTicks  prometheus.Counter
	HeartbeatFailed prometheus.Counter

	// Event bridge
	EventsReceived   *prometheus.CounterVec
	LockTimeouts     *prometheus.CounterVec
	TeardownsTotal   *prometheus.CounterVec
	ImageInitRetries prometheus.Counter
}

// NewMetrics creates the metric set. Collectors are unregistered until the
// registry installs them.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "session",
				Name:      "connects_total",
				Help:      "Connection attempts by result",
			},
			[]string{"result"},
		),
		DisconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "session",
				Name:      "disconnects_total",
				Help:      "Teardowns by trigger (explicit, event, heartbeat)",
			},
			[]string{"trigger"},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "thermalink",
				Subsystem: "session",
				Name:      "connected",
				Help:      "Connection state (0=disconnected, 1=connected)",
			},
		),
		ImageReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "thermalink",
				Subsystem: "session",
				Name:      "image_ready",
				Help:      "Image readiness gate state (0=not ready, 1=ready)",
			},
		),
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "discovery",
				Name:      "scans_total",
				Help:      "Discovery scans by result",
			},
			[]string{"result"},
		),
		DevicesRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "thermalink",
				Subsystem: "discovery",
				Name:      "devices_registered",
				Help:      "Devices currently in the registry",
			},
		),
		HeartbeatTicks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "heartbeat",
				Name:      "ticks_total",
				Help:      "Heartbeat liveness probes performed",
			},
		),
		HeartbeatFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "heartbeat",
				Name:      "failures_total",
				Help:      "Heartbeat probes that detected a dead connection",
			},
		),
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Driver events received by name",
			},
			[]string{"event"},
		),
		LockTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "locks",
				Name:      "timeouts_total",
				Help:      "Lock acquisitions that timed out, by lock",
			},
			[]string{"lock"},
		),
		TeardownsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "session",
				Name:      "teardowns_total",
				Help:      "Teardown routine runs by outcome",
			},
			[]string{"outcome"},
		),
		ImageInitRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "thermalink",
				Subsystem: "events",
				Name:      "image_init_retries_total",
				Help:      "Retries of the image initialization sequence",
			},
		),
	}
}

// Registry couples the metric set with its own Prometheus registry so tests
// never collide on the global default.
type Registry struct {
	reg     *prometheus.Registry
	Metrics *Metrics
}

// NewRegistry creates a registry with the connection-stack metrics and Go
// runtime collectors installed.
func NewRegistry() *Registry {
	r := &Registry{
		reg:     prometheus.NewRegistry(),
		Metrics: NewMetrics(),
	}
	r.reg.MustRegister(
		r.Metrics.ConnectsTotal,
		r.Metrics.DisconnectsTotal,
		r.Metrics.Connected,
		r.Metrics.ImageReady,
		r.Metrics.ScansTotal,
		r.Metrics.DevicesRegistered,
		r.Metrics.HeartbeatTicks,
		r.Metrics.HeartbeatFailed,
		r.Metrics.EventsReceived,
		r.Metrics.LockTimeouts,
		r.Metrics.TeardownsTotal,
		r.Metrics.ImageInitRetries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.reg
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
