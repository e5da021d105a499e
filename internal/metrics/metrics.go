// Package metrics exposes Prometheus metrics for the bridge and the host.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

// Metrics holds all Prometheus metrics for sessionbridge
type Metrics struct {
	// Fetch routing metrics
	FetchRoutes *prometheus.CounterVec

	// Sync engine metrics
	SyncEvents *prometheus.CounterVec

	// Host command metrics
	HostCommands        *prometheus.CounterVec
	HostCommandDuration *prometheus.HistogramVec

	// Host event hub metrics
	HubPublished   *prometheus.CounterVec
	HubDropped     *prometheus.CounterVec
	HubSubscribers prometheus.Gauge

	// Host store and loader metrics
	StoreWrites   *prometheus.CounterVec
	LoaderFetches *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		FetchRoutes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionbridge_fetch_routes_total",
				Help: "Outgoing requests by routing decision",
			},
			[]string{"route"},
		),

		SyncEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionbridge_sync_events_total",
				Help: "Auth events emitted and received by outcome",
			},
			[]string{"outcome"},
		),

		HostCommands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionbridge_host_commands_total",
				Help: "Host commands served",
			},
			[]string{"command", "status"},
		),
		HostCommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessionbridge_host_command_duration_seconds",
				Help:    "Host command latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"command"},
		),

		HubPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionbridge_hub_published_total",
				Help: "Events published on the host hub",
			},
			[]string{"event"},
		),
		HubDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionbridge_hub_dropped_total",
				Help: "Event deliveries dropped because a subscriber queue was full",
			},
			[]string{"event"},
		),
		HubSubscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessionbridge_hub_subscribers",
				Help: "Open event stream subscribers",
			},
		),

		StoreWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionbridge_store_writes_total",
				Help: "Host store writes by kind and result",
			},
			[]string{"kind", "result"},
		),
		LoaderFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionbridge_loader_fetches_total",
				Help: "Host loader resource loads by source",
			},
			[]string{"resource", "source"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionbridge_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code", "component"},
		),
	}
}

// RecordError counts err under its bridge error code, or "unknown".
func (m *Metrics) RecordError(component string, err error) {
	if m == nil || err == nil {
		return
	}
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "unknown"
	}
	m.Errors.WithLabelValues(code, component).Inc()
}

// ObserveRoute counts one routing decision.
func (m *Metrics) ObserveRoute(route string) {
	if m == nil {
		return
	}
	m.FetchRoutes.WithLabelValues(route).Inc()
}

// ObserveSync counts one sync engine outcome.
func (m *Metrics) ObserveSync(outcome string) {
	if m == nil {
		return
	}
	m.SyncEvents.WithLabelValues(outcome).Inc()
}
