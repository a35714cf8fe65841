package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// statusRecorder remembers the error message a handler reported so the
// request log can carry it.
type statusRecorder struct {
	middleware.WrapResponseWriter
	errorMessage string
}

func newStatusRecorder(w http.ResponseWriter, r *http.Request) *statusRecorder {
	return &statusRecorder{WrapResponseWriter: middleware.NewWrapResponseWriter(w, r.ProtoMajor)}
}

func (w *statusRecorder) SetErrorMessage(message string) {
	w.errorMessage = message
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.WrapResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w, r)

			next.ServeHTTP(rec, r)

			status := rec.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"route", routePattern(r),
				"status", status,
				"bytes", rec.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", r.RemoteAddr,
				"user_agent", r.UserAgent(),
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, "query", r.URL.RawQuery)
			}
			if pid := routeParam(r, "portfolioID"); pid != "" {
				fields = append(fields, "portfolio_id", pid)
			}
			if rec.errorMessage != "" {
				fields = append(fields, "error_message", rec.errorMessage)
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("http request completed", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("http request completed", fields...)
			default:
				logger.Info("http request completed", fields...)
			}
		})
	}
}

func panicRecoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}
				logger.Error("panic recovered",
					"request_id", middleware.GetReqID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"route", routePattern(r),
					"panic", fmt.Sprint(recovered),
					"stack", string(debug.Stack()),
				)
				if sw, ok := w.(interface{ Status() int }); ok && sw.Status() != 0 {
					return
				}
				writeError(w, http.StatusInternalServerError, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}

func routeParam(r *http.Request, key string) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.URLParam(key)
}
