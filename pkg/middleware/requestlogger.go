package middleware

import (
	"log/slog"
	"net/http"

	"github.com/shopcore/catalog/pkg/logger"
)

// RequestLogger stores a request-scoped logger in context. It carries the
// method and path plus whatever logger.WithContext finds: correlation_id,
// product_id and the active trace. Handlers fetch it with logger.FromContext.
//
// Mount it after RequestLogging and Tracing so those fields are present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.WithContext(ctx, base).With(
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, l)))
		})
	}
}
