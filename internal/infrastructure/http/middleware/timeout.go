package middleware

import (
	"context"
	"net/http"
	"time"
)

// ExtendedTimeout gives batch validation and stamping routes a longer
// deadline than the server-wide WriteTimeout. It bounds the request context
// and pushes the connection write deadline out by the same amount.
func ExtendedTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			// Not every writer supports deadlines (httptest.ResponseRecorder).
			_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(timeout))

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
