// Package observability exposes Prometheus metrics for the HTTP API and the
// claim service.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warp/benefit-engine/benefit"
)

// Metrics owns a private registry with HTTP and domain collectors.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	allocations     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	conflicts       prometheus.Counter
}

var _ benefit.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benefit_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "benefit_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benefit_allocation_decisions_total",
		Help: "Submission decisions by resolver or allocator code.",
	}, []string{"code"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "benefit_claim_transitions_total",
		Help: "Claims entering each lifecycle status.",
	}, []string{"status"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "benefit_ledger_conflicts_total",
		Help: "Optimistic ledger head conflicts that forced a retry.",
	})
	registry.MustRegister(requests, duration, allocations, transitions, conflicts)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		allocations:     allocations,
		transitions:     transitions,
		conflicts:       conflicts,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
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

func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// =============================================================================
// benefit.Observer
// =============================================================================

func (m *Metrics) AllocationDecided(code string) {
	m.allocations.WithLabelValues(code).Inc()
}

func (m *Metrics) ClaimTransitioned(status benefit.Status) {
	m.transitions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ConflictDetected() {
	m.conflicts.Inc()
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
