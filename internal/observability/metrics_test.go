package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesCustomCollectors(t *testing.T) {
	metrics := NewMetrics()
	jobs := prometheus.NewCounter(prometheus.CounterOpts{Name: "selling_jobs_total", Help: "test"})
	metrics.Registerer().MustRegister(jobs)
	jobs.Inc()

	body := scrape(t, metrics)
	if !strings.Contains(body, "selling_jobs_total 1") {
		t.Fatalf("expected body to contain selling_jobs_total, got: %s", body)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	body := scrape(t, metrics)
	if !strings.Contains(body, "selling_http_requests_total{code=\"418\",route=\"/test\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", body)
	}
	if !strings.Contains(body, "selling_http_request_duration_seconds_bucket{route=\"/test\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", body)
	}
}

func TestObserveTransferCountsOutcomesAndUnits(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveTransfer("applied", 8, 0)
	metrics.ObserveTransfer("partial", 15, 5)
	metrics.ObserveTransfer("conflict", 0, 0)

	body := scrape(t, metrics)
	for _, want := range []string{
		`selling_transfers_total{outcome="applied"} 1`,
		`selling_transfers_total{outcome="partial"} 1`,
		`selling_transfers_total{outcome="conflict"} 1`,
		"selling_transfer_units_moved_total 23",
		"selling_transfer_units_short_total 5",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body, got: %s", want, body)
		}
	}
}

func TestScanGauges(t *testing.T) {
	metrics := NewMetrics()
	metrics.SetLowStock(4)
	metrics.SetExpiryBands(map[string]int{"red": 2, "orange": 0})

	body := scrape(t, metrics)
	for _, want := range []string{
		"selling_low_stock_items 4",
		`selling_near_expiry_rows{band="red"} 2`,
		`selling_near_expiry_rows{band="orange"} 0`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body, got: %s", want, body)
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.ObserveTransfer("applied", 1, 0)
	metrics.SetLowStock(1)
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}
