package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.NewUnregistered()

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(logger.NewWithWriter("test", &buf), m))
	r.Get("/api/runs/{runID}", func(w http.ResponseWriter, r *http.Request) {
		logger.WithContext(r.Context(), "test").Info().Msg("inside handler")
		w.WriteHeader(http.StatusInternalServerError)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/runs/{runID}", "500")))
	assert.Contains(t, buf.String(), `"action":"http_request"`)
	assert.Contains(t, buf.String(), `"route":"/api/runs/{runID}"`)
	assert.Contains(t, buf.String(), `"request_id"`)
}

func TestCORS_Preflight(t *testing.T) {
	r := chi.NewRouter()
	r.Use(CORS([]string{"https://admin.example.com"}))
	r.Put("/api/pause-window", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/pause-window", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
}
