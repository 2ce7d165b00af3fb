package middleware

import (
	"context"
	"net/http"
	"time"
)

// SetTimeout bounds the request context by timeout. The handler itself runs
// to completion; only the context passed to git and model calls carries the
// deadline.
func SetTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			w.Header().Set("X-Clood-Timeout", timeout.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
