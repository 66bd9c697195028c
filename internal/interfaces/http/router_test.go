package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	molapp "github.com/turtacn/molcore/internal/application/molecule"
	"github.com/turtacn/molcore/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molcore/internal/interfaces/http/handlers"
	"github.com/turtacn/molcore/internal/interfaces/http/middleware"
	"github.com/turtacn/molcore/internal/testutil"
)

func newTestRouterConfig(t *testing.T) RouterConfig {
	t.Helper()
	svc, err := molapp.NewService(molapp.Options{})
	require.NoError(t, err)
	logger := testutil.NewMockLogger()
	return RouterConfig{
		MoleculeHandler: handlers.NewMoleculeHandler(svc, logger, 1<<20),
		HealthHandler:   handlers.NewHealthHandler("test", handlers.NewChemistryChecker(svc)),
		Logger:          logger,
	}
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func TestNewRouter_HealthEndpoints(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := serve(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestNewRouter_MoleculeRoutes_Registered(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))

	routes := []struct {
		path string
		body string
	}{
		{"/api/v1/molecules/canonical", `{"molecule":"OCC"}`},
		{"/api/v1/molecules/match", `{"target":"c1ccccc1O","query":"[OH]c"}`},
		{"/api/v1/molecules/fingerprint", `{"molecule":"CCO"}`},
		{"/api/v1/molecules/similarity", `{"a":"CCO","b":"CCN"}`},
		{"/api/v1/molecules/batch/canonical", `{"molecules":["CCO"]}`},
		{"/api/v1/molecules/batch/fingerprint", `{"molecules":["CCO"],"type":"path"}`},
	}
	for _, rt := range routes {
		t.Run(rt.path, func(t *testing.T) {
			rec := serve(router, http.MethodPost, rt.path, rt.body)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Body.String(), `"valid"`)
		})
	}
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))
	rec := serve(router, http.MethodGet, "/api/v1/molecules/canonical", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestNewRouter_UnknownRoute(t *testing.T) {
	router := NewRouter(newTestRouterConfig(t))
	rec := serve(router, http.MethodPost, "/api/v1/molecules/unknown", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"COMMON_005"`)
}

func TestNewRouter_NilHandlers_NoPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		router := NewRouter(RouterConfig{})
		rec := serve(router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = serve(router, http.MethodPost, "/api/v1/molecules/canonical", `{}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestNewRouter_RequestIDAndLogging(t *testing.T) {
	cfg := newTestRouterConfig(t)
	logger := testutil.NewMockLogger()
	cfg.Logger = logger
	router := NewRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/molecules/canonical", strings.NewReader(`{"molecule":"CCO"}`))
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get(middleware.RequestIDHeader))
	entry, ok := logger.Find("info", "HTTP request completed")
	require.True(t, ok)
	id, _ := entry.Field("request_id")
	assert.Equal(t, "abc-123", id)

	// probes are not logged
	logger.Clear()
	serve(router, http.MethodGet, "/healthz", "")
	assert.Empty(t, logger.GetMessages())
}

func TestNewRouter_Metrics(t *testing.T) {
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "molcore_test"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewChemMetrics(collector)

	cfg := newTestRouterConfig(t)
	cfg.HTTPMetrics = metrics
	cfg.MetricsHandler = collector.Handler()
	router := NewRouter(cfg)

	serve(router, http.MethodPost, "/api/v1/molecules/canonical", `{"molecule":"CCO"}`)
	rec := serve(router, http.MethodGet, DefaultMetricsPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "molcore_test_http_requests_total")
	assert.Contains(t, body, `path="/api/v1/molecules/canonical"`)
}

func TestNewRouter_CustomMetricsPath(t *testing.T) {
	cfg := newTestRouterConfig(t)
	cfg.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	cfg.MetricsPath = "/internal/metrics"
	router := NewRouter(cfg)

	assert.Equal(t, http.StatusTeapot, serve(router, http.MethodGet, "/internal/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, DefaultMetricsPath, "").Code)
}

func TestNewRouter_CORS(t *testing.T) {
	cfg := newTestRouterConfig(t)
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = []string{"https://app.example.com"}
	cfg.CORS = &cors
	router := NewRouter(cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/molecules/canonical", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRouter_RateLimitScopedToAPI(t *testing.T) {
	limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)
	cfg := newTestRouterConfig(t)
	cfg.RateLimiter = limiter
	router := NewRouter(cfg)

	body := `{"molecule":"CCO"}`
	assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/api/v1/molecules/canonical", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodPost, "/api/v1/molecules/canonical", body).Code)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/healthz", "").Code)
	}
}

func TestNewRouter_RecoversPanics(t *testing.T) {
	cfg := newTestRouterConfig(t)
	cfg.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	router := NewRouter(cfg)

	rec := serve(router, http.MethodGet, DefaultMetricsPath, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
