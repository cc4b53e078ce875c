// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	ContentIngestedTotal *prometheus.CounterVec
	EventsDrainedTotal   prometheus.Counter
	EventsAckedTotal     prometheus.Counter
	WorkCreatedTotal     *prometheus.CounterVec
	WorkTransitionsTotal *prometheus.CounterVec
	ClaimsRejectedTotal  prometheus.Counter
	LeaseRequeuesTotal   prometheus.Counter
	UnallocatedWork      prometheus.Gauge
	ActiveExecutors      prometheus.Gauge
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ContentIngestedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "content_ingested_total",
				Help: "Total content payloads ingested by payload type.",
			},
			[]string{"payload_type"},
		),
		EventsDrainedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "extraction_events_drained_total",
				Help: "Total extraction events read by the scheduler drain loop.",
			},
		),
		EventsAckedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "extraction_events_acked_total",
				Help: "Total extraction events acknowledged as processed.",
			},
		),
		WorkCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "work_created_total",
				Help: "Total work items created by extractor.",
			},
			[]string{"extractor"},
		),
		WorkTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "work_transitions_total",
				Help: "Total work state transitions by target state and outcome.",
			},
			[]string{"state", "outcome"},
		),
		ClaimsRejectedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "work_claims_rejected_total",
				Help: "Total work assignments rejected because the work was already claimed.",
			},
		),
		LeaseRequeuesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "work_lease_requeues_total",
				Help: "Total work items requeued after an executor lease expired.",
			},
		),
		UnallocatedWork: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "work_unallocated",
				Help: "Number of pending work items without an executor.",
			},
		),
		ActiveExecutors: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "executors_active",
				Help: "Number of executors with a live heartbeat.",
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_cache_hits_total",
				Help: "Total catalog cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_cache_misses_total",
				Help: "Total catalog cache misses.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ContentIngestedTotal,
		m.EventsDrainedTotal,
		m.EventsAckedTotal,
		m.WorkCreatedTotal,
		m.WorkTransitionsTotal,
		m.ClaimsRejectedTotal,
		m.LeaseRequeuesTotal,
		m.UnallocatedWork,
		m.ActiveExecutors,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
