package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/biomarker-engine/internal/application/validation"
	"github.com/turtacn/biomarker-engine/internal/config"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/handlers"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/middleware"
	"github.com/turtacn/biomarker-engine/internal/testutil"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "bioengine"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewAppMetrics(collector)

	svc, err := validation.NewService(testutil.SampleSpecification(), normalizer.DefaultEngineConfig(), nil, validation.WithMetrics(metrics))
	require.NoError(t, err)

	return NewRouter(RouterConfig{
		ValidationHandler: handlers.NewValidationHandler(svc, nil, nil),
		HealthHandler:     handlers.NewHealthHandler("test", svc.Ready),
		Logging:           middleware.DefaultLoggingConfig(),
		MaxBodySize:       1024,
		Metrics:           metrics,
		MetricsCollector:  collector,
		Mode:              "test",
	})
}

func TestRouter_Probes(t *testing.T) {
	r := newTestRouter(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	}
}

func TestRouter_MetricsExposeRequests(t *testing.T) {
	r := newTestRouter(t)

	body := `{"entries": [{"name": "Glicose", "value": 90}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	text := w.Body.String()
	assert.Contains(t, text, `bioengine_http_requests_total{method="POST",path="/api/v1/validate",status_code="200"} 1`)
	assert.Contains(t, text, `bioengine_resolutions_total{match_type="exact"} 1`)
	assert.Contains(t, text, `bioengine_validations_total{outcome="success"} 1`)
}

func TestRouter_BodyLimit(t *testing.T) {
	r := newTestRouter(t)
	big := `{"entries": [{"name": "` + strings.Repeat("a", 2048) + `", "value": 1}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader(big))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	r := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nothing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/validate", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_Addr(t *testing.T) {
	s := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8089}, http.NotFoundHandler(), nil)
	assert.Equal(t, "127.0.0.1:8089", s.Addr())
	assert.NotNil(t, s.Handler())
}
