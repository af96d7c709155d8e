package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	ctxutil "3tcapital/ms_cartaporte_core/internal/infrastructure/context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// maxCorrelationIDLength bounds caller-supplied correlation ids.
const maxCorrelationIDLength = 128

// responseWriter wraps http.ResponseWriter to capture status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// RequestLogger logs every request and seeds the correlation id used by the
// PAC client and the audit log. The id comes from the X-Correlation-ID
// header when present, else from chi's request id, else a new UUID, and is
// echoed back on the response.
// Log levels follow the status code: Info for 2xx/3xx, Warn for 4xx, Error for 5xx.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := r.Context()
			if id := inboundCorrelationID(r); id != "" {
				ctx = ctxutil.WithCorrelationID(ctx, id)
			}
			ctx, correlationID := ctxutil.EnsureCorrelationID(ctx)
			w.Header().Set(ctxutil.CorrelationHeader, correlationID)

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
				"status", rw.statusCode,
				"duration_ms", float64(time.Since(start).Nanoseconds()) / 1e6,
				"bytes", rw.bytesWritten,
			}
			if requestID := chimw.GetReqID(r.Context()); requestID != "" {
				attrs = append(attrs, "request_id", requestID)
			}
			if userAgent := r.Header.Get("User-Agent"); userAgent != "" {
				attrs = append(attrs, "user_agent", userAgent)
			}

			switch {
			case rw.statusCode >= 500:
				log.ErrorContext(ctx, "HTTP request", attrs...)
			case rw.statusCode >= 400:
				log.WarnContext(ctx, "HTTP request", attrs...)
			default:
				log.InfoContext(ctx, "HTTP request", attrs...)
			}
		})
	}
}

func inboundCorrelationID(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(ctxutil.CorrelationHeader))
	if id != "" && len(id) <= maxCorrelationIDLength {
		return id
	}
	return chimw.GetReqID(r.Context())
}
