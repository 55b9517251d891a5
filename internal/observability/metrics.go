package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the engine.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	reconcileRuns     *prometheus.CounterVec
	reconcileRows     *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	toggles           *prometheus.CounterVec
}

// NewMetrics initialises the registry and the engine metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kazna_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kazna_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reconcileRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kazna_reconcile_runs_total",
		Help: "Reconciliation passes by marketplace and result.",
	}, []string{"marketplace", "result"})
	reconcileRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kazna_reconcile_rows_changed_total",
		Help: "Listing rows changed by reconciliation passes.",
	}, []string{"marketplace"})
	reconcileDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kazna_reconcile_duration_seconds",
		Help:    "Duration of one reconciliation pass.",
		Buckets: prometheus.DefBuckets,
	}, []string{"marketplace"})
	toggles := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kazna_suppression_toggles_total",
		Help: "Suppression ledger transitions by axis and state.",
	}, []string{"axis", "state"})
	registry.MustRegister(requests, duration, reconcileRuns, reconcileRows, reconcileDuration, toggles)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		reconcileRuns:     reconcileRuns,
		reconcileRows:     reconcileRows,
		reconcileDuration: reconcileDuration,
		toggles:           toggles,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveReconcile records the outcome of one reconciliation pass.
func (m *Metrics) ObserveReconcile(marketplace, result string, rowsChanged int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(marketplace, result).Inc()
	m.reconcileRows.WithLabelValues(marketplace).Add(float64(rowsChanged))
	m.reconcileDuration.WithLabelValues(marketplace).Observe(elapsed.Seconds())
}

// ObserveToggle records one suppression ledger transition.
func (m *Metrics) ObserveToggle(axis, state string) {
	if m == nil {
		return
	}
	m.toggles.WithLabelValues(axis, state).Inc()
}

// Middleware records metrics for every HTTP request.
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

// Registerer exposes the registry for custom metric registration.
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
