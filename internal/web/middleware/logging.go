// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/kobosync/internal/logging"
)

// DefaultSlowRequest is the duration after which a request that did not run
// a sync pass is logged at WARN.
const DefaultSlowRequest = 5 * time.Second

type outcomeKey struct{}

// outcome collects attributes handlers attach to the request log line.
type outcome struct {
	mu    sync.Mutex
	attrs []any
	pass  bool
}

// Annotate adds key/value pairs to the request's log line. It is a no-op
// outside Logger.
func Annotate(ctx context.Context, args ...any) {
	o, ok := ctx.Value(outcomeKey{}).(*outcome)
	if !ok {
		return
	}
	o.mu.Lock()
	o.attrs = append(o.attrs, args...)
	o.mu.Unlock()
}

// AnnotatePass marks the request as having run a sync pass and records its
// id, mode and duration. Pass requests are exempt from the slow warning.
func AnnotatePass(ctx context.Context, passID, mode string, durationMS int64) {
	o, ok := ctx.Value(outcomeKey{}).(*outcome)
	if !ok {
		return
	}
	o.mu.Lock()
	o.pass = true
	o.attrs = append(o.attrs, "pass_id", passID, "mode", mode, "pass_duration_ms", durationMS)
	o.mu.Unlock()
}

// Logger logs one line per request with the matched route, the status and
// whatever the handler attached through Annotate (error code, pass id).
//
// Server errors log at ERROR and client errors at WARN. A request slower
// than slow logs at WARN unless it ran a sync pass, whose duration is
// bounded by SYNC_TIMEOUT instead.
func Logger(slow time.Duration) func(http.Handler) http.Handler {
	if slow <= 0 {
		slow = DefaultSlowRequest
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			o := &outcome{}
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), outcomeKey{}, o)))

			duration := time.Since(start)
			args := []any{
				"method", r.Method,
				"route", routePattern(r),
				"status", ww.status,
				"duration_ms", duration.Milliseconds(),
				"ip", r.RemoteAddr,
			}
			o.mu.Lock()
			args = append(args, o.attrs...)
			pass := o.pass
			o.mu.Unlock()

			level, msg := slog.LevelInfo, "request"
			switch {
			case ww.status >= http.StatusInternalServerError:
				level, msg = slog.LevelError, "request failed"
			case ww.status >= http.StatusBadRequest:
				level, msg = slog.LevelWarn, "request rejected"
			case !pass && duration > slow:
				level, msg = slog.LevelWarn, "slow request"
			}
			logging.FromContext(r.Context()).Log(r.Context(), level, msg, args...)
		})
	}
}

// routePattern returns the matched chi pattern, or the raw path for
// unmatched requests.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
