package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shopcore/catalog/internal/service"
	"github.com/shopcore/catalog/internal/storage"
	"github.com/shopcore/catalog/pkg/health"
	"github.com/shopcore/catalog/pkg/middleware"
)

// ServiceName labels HTTP metrics and spans.
const ServiceName = "catalog"

// requestTimeout matches the server write timeout so slow uploads are cut
// with a 504 before the connection is dropped.
const requestTimeout = 60 * time.Second

// RouterConfig carries the HTTP-level settings of the router.
type RouterConfig struct {
	Uploads UploadConfig
	CORS    middleware.CORSConfig

	// ImageMaxAge is advertised in Cache-Control for stored images.
	ImageMaxAge time.Duration
	// ProfilerCIDRs lists the client networks allowed on /debug/pprof.
	ProfilerCIDRs []string
}

// NewRouter creates a chi router with all catalog service routes registered.
func NewRouter(
	productService *service.ProductService,
	referenceService *service.ReferenceService,
	images storage.Storage,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})
	middleware.MountProfiler(r, cfg.ProfilerCIDRs, logger)

	// Product API endpoints
	productHandler := NewProductHandler(productService, cfg.Uploads, logger)

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Use(chimw.AllowContentType("application/json", "multipart/form-data"))

		r.Get("/", productHandler.ListProducts)
		r.Post("/", productHandler.CreateProduct)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(ProductContext)

			r.Get("/", productHandler.GetProduct)
			r.Put("/", productHandler.UpdateProduct)
			r.Delete("/", productHandler.DeleteProduct)
			r.Put("/colors/{colorId}", productHandler.UpdateProduct)
			r.Put("/colors/{colorId}/sizes/{sizeId}", productHandler.UpdateProduct)
		})
	})

	// Category and brand API endpoints
	referenceHandler := NewReferenceHandler(referenceService, logger)

	r.Get("/api/v1/categories", referenceHandler.ListCategories)
	r.Get("/api/v1/brands", referenceHandler.ListBrands)

	// Stored product images
	imageHandler := NewImageHandler(images, logger)

	r.With(middleware.CacheControl(cfg.ImageMaxAge)).
		Get("/images/products/{name}", imageHandler.ServeImage)

	return r
}
