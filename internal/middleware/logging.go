// Package middleware contains HTTP middleware functions shared by all routes.
//
// WHAT IS MIDDLEWARE?
// A middleware wraps an http.Handler to add behaviour that many routes need
// (request logging, rate limiting, auth checks) without touching the
// handlers themselves:
//
//	func Example(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // before the handler
//	        next.ServeHTTP(w, r)
//	        // after the handler
//	    })
//	}
//
// Constructors that need dependencies (a logger, a limiter) return this
// shape as a closure: Logger(logger) gives back func(http.Handler) http.Handler,
// which is exactly what chi's Router.Use and Router.With accept.
//
// Order matters. Each Use wraps everything registered after it, so the first
// middleware sees the request first and the response last.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture the status code and
// the number of bytes written.
//
// http.ResponseWriter has no getter for the status once WriteHeader has been
// called, so the logger records it on the way through. Embedding the
// interface keeps Header delegated unchanged; optional interfaces such as
// http.Flusher are not exposed by the wrapper.
type responseWriter struct {
	http.ResponseWriter       // embedded: all methods we don't override pass through
	statusCode          int   // last status passed to WriteHeader
	written             int64 // body bytes written so far
}

// WriteHeader records the status code before delegating to the embedded
// ResponseWriter.
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write counts body bytes and delegates to the embedded ResponseWriter.
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logger returns an HTTP middleware that logs each request using slog.
//
// One structured line per request, emitted after the handler returns:
//
//	level=WARN msg="request completed" request_id=host/abc-000012
//	  method=POST path=/api/users/login status=403 duration=3.1ms bytes=96
//
// The request id comes from chi's RequestID middleware, which must run
// earlier in the chain; without it the field is empty. 5xx responses are
// logged at error level and 4xx at warn, so a production log filtered to
// WARN shows exactly the failed requests.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // Default if WriteHeader is never called
			}

			next.ServeHTTP(wrapped, r)

			level := slog.LevelInfo
			switch {
			case wrapped.statusCode >= 500:
				level = slog.LevelError
			case wrapped.statusCode >= 400:
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "request completed",
				slog.String("request_id", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
			)
		})
	}
}
