package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shopcore/catalog/pkg/httputil"
	"github.com/shopcore/catalog/pkg/logger"
)

var httpPanicsRecovered = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_panics_recovered_total",
		Help: "Total number of handler panics turned into 500 responses",
	},
	[]string{"method", "path"},
)

// Recovery turns a handler panic into a 500 error envelope. If the handler
// already started the response, the connection is left to the server.
// http.ErrAbortHandler is re-raised untouched.
func Recovery(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := newStatusRecorder(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				path := routePattern(r)
				httpPanicsRecovered.WithLabelValues(r.Method, path).Inc()

				reqLogger := logger.FromContext(r.Context())
				if reqLogger == slog.Default() {
					reqLogger = l
				}
				reqLogger.ErrorContext(r.Context(), "panic recovered",
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("route", path),
				)

				if rw.wroteHeader {
					return
				}
				httputil.WriteJSON(rw, http.StatusInternalServerError, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      "INTERNAL_ERROR",
						Message:   "an internal error occurred",
						RequestID: logger.CorrelationIDFromContext(r.Context()),
					},
				})
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
