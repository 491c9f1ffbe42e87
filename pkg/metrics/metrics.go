// Package metrics exposes Prometheus collectors for search, location
// resolution and synchronization.
//
// Every method is safe to call on a nil *Metrics, so components can be built
// without instrumentation in tests and tools.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vendorscout"

type Metrics struct {
	registry *prometheus.Registry

	searchRequests *prometheus.CounterVec
	searchDuration prometheus.Histogram
	searchResults  prometheus.Histogram

	sourceResults  *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec

	locationCache *prometheus.CounterVec
	resolveLevel  *prometheus.CounterVec

	syncRuns     *prometheus.CounterVec
	syncRecords  *prometheus.CounterVec
	taxonomySize prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		searchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by outcome (ok, invalid).",
		}, []string{"outcome"}),
		searchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Wall-clock time of the whole search fan-out.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		searchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Merged result count per search.",
			Buckets:   []float64{0, 1, 5, 10, 20, 40, 80},
		}),
		sourceResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_results_total",
			Help:      "Results returned by each source.",
		}, []string{"source"}),
		sourceFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_failures_total",
			Help:      "Failed source queries (errors, timeouts, panics).",
		}, []string{"source"}),
		sourceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_duration_seconds",
			Help:      "Per-source query latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 3},
		}, []string{"source"}),
		locationCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_cache_lookups_total",
			Help:      "Resolver cache lookups by result (hit, miss).",
		}, []string{"result"}),
		resolveLevel: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_resolutions_total",
			Help:      "Computed resolutions by matched level.",
		}, []string{"level"}),
		syncRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_sync_runs_total",
			Help:      "Location sync runs by outcome (skipped, ok, failed).",
		}, []string{"outcome"}),
		syncRecords: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_sync_records_total",
			Help:      "Location records written or failed by sync runs.",
		}, []string{"result"}),
		taxonomySize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "location_taxonomy_records",
			Help:      "Records in the location store after the last sync.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SearchCompleted(outcome string, results int, d time.Duration) {
	if m == nil {
		return
	}
	m.searchRequests.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.searchDuration.Observe(d.Seconds())
		m.searchResults.Observe(float64(results))
	}
}

func (m *Metrics) SourceCompleted(source string, results int, failed bool, d time.Duration) {
	if m == nil {
		return
	}
	m.sourceDuration.WithLabelValues(source).Observe(d.Seconds())
	if failed {
		m.sourceFailures.WithLabelValues(source).Inc()
		return
	}
	m.sourceResults.WithLabelValues(source).Add(float64(results))
}

func (m *Metrics) LocationCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.locationCache.WithLabelValues(result).Inc()
}

func (m *Metrics) Resolved(level string) {
	if m == nil {
		return
	}
	m.resolveLevel.WithLabelValues(level).Inc()
}

func (m *Metrics) SyncCompleted(outcome string, processed, failed, total int) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(outcome).Inc()
	m.syncRecords.WithLabelValues("processed").Add(float64(processed))
	m.syncRecords.WithLabelValues("errors").Add(float64(failed))
	if outcome != "failed" {
		m.taxonomySize.Set(float64(total))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per matched route. The
// metrics endpoint itself is not recorded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
