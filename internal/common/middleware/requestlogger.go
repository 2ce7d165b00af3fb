// Package middleware provides HTTP middleware for request logging, timeouts
// and panic recovery. Each request is tagged with a request id that is placed
// in the context logger and echoed in a response header.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/clood-dev/clood/internal/common/httpx"
	"github.com/clood-dev/clood/internal/common/logtrace"
	"github.com/clood-dev/clood/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the request id back to the caller.
const RequestIDHeader = "X-Clood-Request-ID"

// RequestLogger logs each request and its completion, attaching a request id
// to both the request context and the response headers.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		requestID := newRequestId()
		ctx = logtrace.WithRequestId(ctx, requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		rw := httpx.NewResponseWriter(w)
		rw.Header().Set(RequestIDHeader, requestID)

		log.Ctx(ctx).Info().
			Str("requestMethod", r.Method).
			Str("requestPath", r.URL.Path).
			Str("remoteIP", r.RemoteAddr).
			Str("proto", r.Proto).
			Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Int("status", rw.Status()).
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

func newRequestId() string {
	return uuid.NewString()
}
