package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cricmirror/core/pkg/logger"
	"github.com/cricmirror/core/pkg/metrics"
)

// RequestLogger puts a request-scoped logger in the context, then logs and counts
// every request by its route pattern. It expects chi's RequestID middleware to run first.
func RequestLogger(log *logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			reqLogger := log.WithRequestID(chimw.GetReqID(r.Context()))
			r = r.WithContext(reqLogger.ToContext(r.Context()))

			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)
			m.ObserveHTTP(r.Method, route, status, duration)

			event := reqLogger.Debug()
			if status >= http.StatusInternalServerError {
				event = reqLogger.Error()
			}
			event.
				Str("action", "http_request").
				Str("method", r.Method).
				Str("route", route).
				Str("path", r.URL.Path).
				Int("status_code", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Msg("HTTP request")
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
