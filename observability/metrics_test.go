package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/benefit-engine/benefit"
)

func TestMetricsMiddleware_RecordsRoutePattern(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/claims/{id}/approve")
	req := httptest.NewRequest(http.MethodPost, "/api/claims/c1/approve", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("/api/claims/{id}/approve", "422")))

	body := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(body, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, body.Body.String(), `benefit_http_request_duration_seconds_bucket{route="/api/claims/{id}/approve"`)
}

func TestMetrics_ObserverCounters(t *testing.T) {
	metrics := NewMetrics()

	metrics.AllocationDecided(benefit.CodePartiallyConsidered)
	metrics.AllocationDecided(benefit.CodePartiallyConsidered)
	metrics.ClaimTransitioned(benefit.StatusApproved)
	metrics.ConflictDetected()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.allocations.WithLabelValues(benefit.CodePartiallyConsidered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues("valido")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.conflicts))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var metrics *Metrics
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.NotNil(t, metrics.Middleware(next))
}
