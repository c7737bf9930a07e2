package snapshot

import (
	"context"
	"net/http"
	"time"

	"github.com/signalsfoundry/conjunction-sweep/internal/logging"
)

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// logRequests tags each request with a request id, stores a request-scoped
// logger on the context and logs completion. Probes log at debug.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx := r.Context()
		if id := r.Header.Get(requestIDHeader); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, log := logging.WithRequestLogger(ctx, s.log)
		ctx = logging.ContextWithLogger(ctx, log)
		w.Header().Set(requestIDHeader, logging.RequestIDFromContext(ctx))

		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r.WithContext(ctx))

		fields := []logging.Field{
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", sr.statusCode),
			logging.Int64("duration_ms", time.Since(start).Milliseconds()),
			logging.String("remote_ip", r.RemoteAddr),
		}
		if probePath(r.URL.Path) {
			log.Debug(ctx, "request", fields...)
			return
		}
		log.Info(ctx, "request", fields...)
	})
}

func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

// routeLabel maps a request to its mux pattern so metrics stay bounded.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

func logger(ctx context.Context, fallback logging.Logger) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return fallback
}
