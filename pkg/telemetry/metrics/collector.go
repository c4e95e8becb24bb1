// Package metrics exposes prometheus instrumentation for the gateway:
// per-provider request counts and latency, stream event counts,
// proof-of-work solve duration and session refreshes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nxapi"

// Collector holds all gateway metrics, registered on its own registry
// so tests can instantiate it repeatedly.
type Collector struct {
	registry *prometheus.Registry

	// requests counts chat submissions by provider and model
	requests *prometheus.CounterVec

	// requestDuration observes wall time from submit to terminal event
	requestDuration *prometheus.HistogramVec

	// streamEvents counts canonical events by provider and type
	streamEvents *prometheus.CounterVec

	// errors counts terminal failures by provider and error kind
	errors *prometheus.CounterVec

	// powDuration observes proof-of-work solve time
	powDuration prometheus.Histogram

	// sessionRefreshes counts credential refreshes by provider
	sessionRefreshes *prometheus.CounterVec
}

// NewCollector creates and registers all gateway metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_requests_total",
				Help:      "Total chat submissions per provider and model",
			},
			[]string{"provider", "model"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_request_duration_seconds",
				Help:      "Wall time from submission to terminal event",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"provider", "model"},
		),

		streamEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_events_total",
				Help:      "Canonical stream events per provider and event type",
			},
			[]string{"provider", "type"},
		),

		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_errors_total",
				Help:      "Terminal failures per provider and error kind",
			},
			[]string{"provider", "kind"},
		),

		powDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pow_solve_duration_seconds",
				Help:      "Proof-of-work nonce search duration",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
			},
		),

		sessionRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_refreshes_total",
				Help:      "Credential refreshes per provider",
			},
			[]string{"provider"},
		),
	}

	c.registry.MustRegister(
		c.requests,
		c.requestDuration,
		c.streamEvents,
		c.errors,
		c.powDuration,
		c.sessionRefreshes,
	)

	return c
}

// RecordRequest counts one chat submission.
func (c *Collector) RecordRequest(provider, model string) {
	c.requests.WithLabelValues(provider, model).Inc()
}

// RecordDuration observes the wall time of one completed request.
func (c *Collector) RecordDuration(provider, model string, d time.Duration) {
	c.requestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
}

// RecordStreamEvent counts one canonical event.
func (c *Collector) RecordStreamEvent(provider, eventType string) {
	c.streamEvents.WithLabelValues(provider, eventType).Inc()
}

// RecordError counts one terminal failure by its classified kind.
func (c *Collector) RecordError(provider, kind string) {
	c.errors.WithLabelValues(provider, kind).Inc()
}

// RecordPowDuration observes one proof-of-work solve.
func (c *Collector) RecordPowDuration(d time.Duration) {
	c.powDuration.Observe(d.Seconds())
}

// RecordSessionRefresh counts one credential refresh.
func (c *Collector) RecordSessionRefresh(provider string) {
	c.sessionRefreshes.WithLabelValues(provider).Inc()
}

// Handler returns the /metrics HTTP handler for this collector's
// registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
