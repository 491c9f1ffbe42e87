package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SearchCompleted("ok", 3, time.Second)
	m.SourceCompleted("listings", 3, false, time.Millisecond)
	m.LocationCache(true)
	m.Resolved("city")
	m.SyncCompleted("ok", 1, 0, 1)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	if h == nil {
		t.Fatal("nil metrics middleware must pass the handler through")
	}
}

func TestCounters(t *testing.T) {
	m := New()

	m.SourceCompleted("listings", 4, false, time.Millisecond)
	m.SourceCompleted("social", 0, true, time.Millisecond)
	m.LocationCache(true)
	m.LocationCache(false)
	m.LocationCache(false)
	m.SyncCompleted("ok", 120, 20, 500)

	if got := testutil.ToFloat64(m.sourceResults.WithLabelValues("listings")); got != 4 {
		t.Errorf("listings results = %v", got)
	}
	if got := testutil.ToFloat64(m.sourceFailures.WithLabelValues("social")); got != 1 {
		t.Errorf("social failures = %v", got)
	}
	if got := testutil.ToFloat64(m.locationCache.WithLabelValues("miss")); got != 2 {
		t.Errorf("cache misses = %v", got)
	}
	if got := testutil.ToFloat64(m.taxonomySize); got != 500 {
		t.Errorf("taxonomy size = %v", got)
	}
	if got := testutil.ToFloat64(m.syncRecords.WithLabelValues("errors")); got != 20 {
		t.Errorf("sync errors = %v", got)
	}
}

func TestHandlerAndMiddleware(t *testing.T) {
	m := New()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.Handle("GET /metrics", m.Handler())
	h := m.Middleware(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "GET /health", "418")); got != 1 {
		t.Errorf("http requests = %v", got)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "vendorscout_http_requests_total") {
		t.Fatalf("metrics output missing collector: %s", rec.Body.String())
	}
}
