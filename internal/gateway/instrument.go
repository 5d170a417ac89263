package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/mailgateway/internal/logging"
)

// instrument records request metrics and a debug log line per request,
// labelled by route pattern rather than raw path.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		duration := time.Since(start)

		s.metrics.RecordHTTPRequest(r.Context(), r.Method, route, status, duration)
		s.logger.Debug("HTTP request",
			slog.String("method", r.Method),
			slog.String(logging.KeyRoute, route),
			slog.Int(logging.KeyStatus, status),
			slog.Duration(logging.KeyDuration, duration),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
