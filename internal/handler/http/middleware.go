package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopcore/catalog/pkg/logger"
)

// ProductContext tags the request context and its logger with the product
// named by the id URL parameter.
func ProductContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := logger.WithProductID(r.Context(), id)
		ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("product_id", id)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
