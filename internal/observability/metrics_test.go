package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/roles")

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `fieldops_http_requests_total{code="418",route="/roles"} 1`)
	assert.Contains(t, body, `fieldops_http_request_duration_seconds_bucket{route="/roles"`)
}

func TestRecordDecision(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordDecision("jobs", true)
	metrics.RecordDecision("jobs", true)
	metrics.RecordDecision("users", false)

	body := scrape(t, metrics)
	assert.Contains(t, body, `fieldops_authz_decisions_total{group="jobs",result="granted"} 2`)
	assert.Contains(t, body, `fieldops_authz_decisions_total{group="users",result="denied"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics

	metrics.RecordDecision("jobs", true)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, metrics.Middleware(next))

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
