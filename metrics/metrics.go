// Package metrics bundles the Prometheus collectors used across motofit.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors on a dedicated registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	FetchRequestsTotal *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	FetchRetriesTotal  prometheus.Counter
	FetchErrorsTotal   *prometheus.CounterVec

	CatalogLoadsTotal *prometheus.CounterVec
	CatalogRowsTotal  *prometheus.CounterVec
	CatalogRows       prometheus.Gauge
	CatalogVersion    prometheus.Gauge

	RecommendationsTotal *prometheus.CounterVec
	RecommendationSize   prometheus.Histogram
	CacheLookupsTotal    *prometheus.CounterVec
	ActiveSessions       prometheus.Gauge

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		Registry: registry,
		FetchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motofit_fetch_requests_total",
				Help: "Total HTTP requests issued for remote catalogs.",
			},
			[]string{"phase"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "motofit_fetch_duration_seconds",
				Help:    "Latency of remote catalog downloads.",
				Buckets: prometheus.DefBuckets,
			},
		),
		FetchRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "motofit_fetch_retries_total",
				Help: "Total number of download retries scheduled.",
			},
		),
		FetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motofit_fetch_errors_total",
				Help: "Total number of download errors by type.",
			},
			[]string{"error_type"},
		),
		CatalogLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motofit_catalog_loads_total",
				Help: "Catalog load attempts by outcome.",
			},
			[]string{"outcome"},
		),
		CatalogRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motofit_catalog_rows_total",
				Help: "Catalog rows seen while loading, by outcome.",
			},
			[]string{"outcome"},
		),
		CatalogRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "motofit_catalog_rows",
				Help: "Rows in the currently published catalog.",
			},
		),
		CatalogVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "motofit_catalog_version",
				Help: "Version of the currently published catalog.",
			},
		),
		RecommendationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motofit_recommendations_total",
				Help: "Recommendation queries by outcome.",
			},
			[]string{"outcome"},
		),
		RecommendationSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "motofit_recommendation_rows",
				Help:    "Rows returned per recommendation.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motofit_result_cache_lookups_total",
				Help: "Recommendation cache lookups by result.",
			},
			[]string{"result"},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "motofit_active_sessions",
				Help: "Sessions currently held in memory.",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "motofit_http_requests_total",
				Help: "API requests by route, method and status.",
			},
			[]string{"route", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "motofit_http_request_duration_seconds",
				Help:    "API request latency by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FetchRequestsTotal, m.FetchDuration, m.FetchRetriesTotal, m.FetchErrorsTotal,
		m.CatalogLoadsTotal, m.CatalogRowsTotal, m.CatalogRows, m.CatalogVersion,
		m.RecommendationsTotal, m.RecommendationSize, m.CacheLookupsTotal, m.ActiveSessions,
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// IncFetchRequest increments the fetch requests counter.
func (m *Metrics) IncFetchRequest(phase string) {
	if m == nil {
		return
	}
	m.FetchRequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveFetchDuration records a download duration.
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncFetchRetries increments the retries counter.
func (m *Metrics) IncFetchRetries() {
	if m == nil {
		return
	}
	m.FetchRetriesTotal.Inc()
}

// IncFetchError increments the errors counter for a type label.
func (m *Metrics) IncFetchError(errorType string) {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.WithLabelValues(errorType).Inc()
}

// ObserveCatalogLoad records a load outcome and its row counts.
func (m *Metrics) ObserveCatalogLoad(outcome string, kept, rejected int) {
	if m == nil {
		return
	}
	m.CatalogLoadsTotal.WithLabelValues(outcome).Inc()
	m.CatalogRowsTotal.WithLabelValues("kept").Add(float64(kept))
	m.CatalogRowsTotal.WithLabelValues("rejected").Add(float64(rejected))
}

// SetCatalog records the published catalog's size and version.
func (m *Metrics) SetCatalog(rows int, version uint64) {
	if m == nil {
		return
	}
	m.CatalogRows.Set(float64(rows))
	m.CatalogVersion.Set(float64(version))
}

// ObserveRecommendation records a query outcome and the rows it returned.
func (m *Metrics) ObserveRecommendation(outcome string, rows int) {
	if m == nil {
		return
	}
	m.RecommendationsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.RecommendationSize.Observe(float64(rows))
	}
}

// IncCacheLookup counts a result cache hit or miss.
func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// SetActiveSessions records the live session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// ObserveHTTPRequest records one API request.
func (m *Metrics) ObserveHTTPRequest(route, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
