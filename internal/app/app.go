package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopcore/catalog/internal/config"
	"github.com/shopcore/catalog/internal/event"
	handler "github.com/shopcore/catalog/internal/handler/http"
	"github.com/shopcore/catalog/internal/resolver"
	"github.com/shopcore/catalog/internal/service"
	"github.com/shopcore/catalog/internal/storage/local"
	"github.com/shopcore/catalog/pkg/database"
	"github.com/shopcore/catalog/pkg/health"
	pkgkafka "github.com/shopcore/catalog/pkg/kafka"
	"github.com/shopcore/catalog/pkg/middleware"
	"github.com/shopcore/catalog/pkg/tracing"
)

// Version is stamped at build time with -ldflags "-X .../internal/app.Version=...".
var Version = "dev"

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	store           *backend
	cache           *redis.Client
	producer        *pkgkafka.Producer
	dlq             *pkgkafka.DLQProducer
	httpServer      *http.Server
	categoryChanged *pkgkafka.Consumer
	brandChanged    *pkgkafka.Consumer
	tracerShutdown  func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Configure slow query logging.
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Open the product store.
	var store *backend
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		store, err = openPostgres(ctx, cfg, logger)
	default:
		store, err = openMongo(ctx, cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	// Image store and upload staging directory.
	images, err := local.New(filepath.Join(cfg.RootPath, local.ProductImagesDir))
	if err != nil {
		store.close()
		return nil, fmt.Errorf("init image store: %w", err)
	}
	if err := os.MkdirAll(cfg.UploadTmpDir, 0o700); err != nil {
		store.close()
		return nil, fmt.Errorf("create upload dir %s: %w", cfg.UploadTmpDir, err)
	}
	logger.Info("image store ready",
		slog.String("dir", images.Dir()),
		slog.String("upload_dir", cfg.UploadTmpDir),
	)

	// Optional Redis cache for name resolution.
	var cache *redis.Client
	if cfg.RedisAddr != "" {
		redisCfg := database.DefaultRedisConfig()
		redisCfg.Addr = cfg.RedisAddr
		redisCfg.Password = cfg.RedisPassword
		redisCfg.DB = cfg.RedisDB
		cache, err = database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			logger.Warn("redis unavailable, resolving references without cache",
				slog.String("addr", cfg.RedisAddr),
				slog.String("error", err.Error()),
			)
			cache = nil
		} else {
			logger.Info("connected to Redis", slog.String("addr", cfg.RedisAddr))
		}
	}

	// Initialize Kafka producer with connection validation and retry.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	if err := pingKafkaWithRetry(ctx, producer, logger); err != nil {
		logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	refResolver := resolver.New(store.refs, cache, cfg.ResolverCacheTTL, logger)
	eventProducer := event.NewProducer(producer, logger)
	productService := service.NewProductService(store.products, refResolver, images, eventProducer, logger)
	referenceService := service.NewReferenceService(store.refs)

	// Kafka consumers for reference changes.
	eventConsumer := event.NewConsumer(refResolver, logger)
	var idempotencyStore pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(24 * time.Hour)
	if cache != nil {
		idempotencyStore = pkgkafka.NewRedisIdempotencyStore(cache, "catalog:events:", 24*time.Hour)
	}
	dlq := pkgkafka.NewDLQProducer(cfg.KafkaBrokers, logger)

	categoryChanged := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID + "-category-changed",
		Topic:    event.TopicCategoryChanged,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandleCategoryChanged, logger), dlq, logger)

	brandChanged := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:  cfg.KafkaBrokers,
		GroupID:  cfg.KafkaGroupID + "-brand-changed",
		Topic:    event.TopicBrandChanged,
		MinBytes: 1,
		MaxBytes: 10e6,
	}, pkgkafka.IdempotentHandler(idempotencyStore, eventConsumer.HandleBrandChanged, logger), dlq, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical(cfg.StorageDriver, store.ping)
	healthHandler.RegisterNonCritical("kafka", producer.Ping)
	if cache != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return cache.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(productService, referenceService, images, healthHandler, handler.RouterConfig{
		Uploads: handler.UploadConfig{
			TempDir:  cfg.UploadTmpDir,
			MaxBytes: cfg.MaxUploadBytes(),
		},
		CORS:          corsConfig(cfg),
		ImageMaxAge:   cfg.ImageCacheMaxAge,
		ProfilerCIDRs: cfg.PprofAllowedCIDRs,
	}, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:             cfg,
		logger:          logger,
		store:           store,
		cache:           cache,
		producer:        producer,
		dlq:             dlq,
		httpServer:      httpServer,
		categoryChanged: categoryChanged,
		brandChanged:    brandChanged,
		tracerShutdown:  tracerShutdown,
	}, nil
}

// Run starts the HTTP server and Kafka consumers, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 3)

	// Start HTTP server.
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Start Kafka consumers.
	go func() {
		if err := a.categoryChanged.Start(ctx); err != nil {
			errCh <- fmt.Errorf("category changed consumer: %w", err)
		}
	}()

	go func() {
		if err := a.brandChanged.Start(ctx); err != nil {
			errCh <- fmt.Errorf("brand changed consumer: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka consumers and dead letter producer
// 4. Kafka producer
// 5. Redis and the product store
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (10s budget; uploads can be slow).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka consumers and the dead letter producer.
	if err := a.categoryChanged.Close(); err != nil {
		a.logger.Error("category changed consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.brandChanged.Close(); err != nil {
		a.logger.Error("brand changed consumer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	if err := a.dlq.Close(); err != nil {
		a.logger.Error("dlq producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close Redis and the product store.
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	a.store.close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins
	cors.Environment = cfg.Environment
	return cors
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if lastErr = producer.Ping(ctx); lastErr == nil {
			return nil
		}
		if attempt < 2 {
			base := time.Duration(1<<uint(attempt)) * time.Second
			jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- non-cryptographic jitter for retry backoff
			wait := base + jitter
			logger.Warn("kafka producer ping failed, retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", 3),
				slog.Duration("backoff", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
			case <-time.After(wait):
			}
		}
	}
	return fmt.Errorf("kafka producer ping failed after 3 attempts: %w", lastErr)
}
