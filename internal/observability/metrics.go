package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk area penjualan.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	transfers       *prometheus.CounterVec
	unitsMoved      prometheus.Counter
	unitsShort      prometheus.Counter
	lowStockItems   prometheus.Gauge
	expiryRows      *prometheus.GaugeVec
}

// NewMetrics menginisialisasi registry, metrik HTTP dan metrik transfer.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "selling_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "selling_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "selling_transfers_total",
		Help: "Transfer inventory ke rak berdasarkan hasil.",
	}, []string{"outcome"})
	moved := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "selling_transfer_units_moved_total",
		Help: "Unit yang dipindahkan dari batch ke rak.",
	})
	short := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "selling_transfer_units_short_total",
		Help: "Unit yang diminta tetapi tidak tersedia.",
	})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "selling_low_stock_items",
		Help: "Jumlah item di bawah ambang rak pada pemindaian terakhir.",
	})
	expiry := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "selling_near_expiry_rows",
		Help: "Baris rak mendekati kedaluwarsa per pita pada pemindaian terakhir.",
	}, []string{"band"})
	registry.MustRegister(requests, duration, transfers, moved, short, lowStock, expiry,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		transfers:       transfers,
		unitsMoved:      moved,
		unitsShort:      short,
		lowStockItems:   lowStock,
		expiryRows:      expiry,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveTransfer mencatat hasil satu transfer beserta unit yang dipindah dan kurang.
func (m *Metrics) ObserveTransfer(outcome string, moved, shortfall int) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Inc()
	if moved > 0 {
		m.unitsMoved.Add(float64(moved))
	}
	if shortfall > 0 {
		m.unitsShort.Add(float64(shortfall))
	}
}

// SetLowStock menyimpan jumlah item stok rendah.
func (m *Metrics) SetLowStock(count int) {
	if m == nil {
		return
	}
	m.lowStockItems.Set(float64(count))
}

// SetExpiryBands menyimpan jumlah baris per pita kedaluwarsa.
func (m *Metrics) SetExpiryBands(counts map[string]int) {
	if m == nil {
		return
	}
	for band, n := range counts {
		m.expiryRows.WithLabelValues(band).Set(float64(n))
	}
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
