package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shopcore/catalog/internal/config"
	"github.com/shopcore/catalog/internal/repository"
	"github.com/shopcore/catalog/internal/repository/mongodb"
	"github.com/shopcore/catalog/internal/repository/postgres"
	"github.com/shopcore/catalog/migrations"
	"github.com/shopcore/catalog/pkg/database"
	"github.com/shopcore/catalog/pkg/health"
)

// backend is an opened product store.
type backend struct {
	products repository.ProductRepository
	refs     repository.ReferenceRepository
	ping     health.Checker
	close    func()
}

func openMongo(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	mongoCfg := database.DefaultMongoConfig()
	mongoCfg.URI = cfg.MongoURI
	mongoCfg.Database = cfg.MongoDB
	mongoCfg.MaxPoolSize = cfg.MongoMaxPoolSize
	mongoCfg.PoolMonitor = database.NewMongoPoolMetrics(prometheus.DefaultRegisterer, "catalog").Monitor()

	client, err := database.NewMongoClient(ctx, mongoCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDB))

	db := client.Database(cfg.MongoDB)
	products := mongodb.NewProductRepository(db)
	if err := products.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}

	return &backend{
		products: products,
		refs:     mongodb.NewReferenceRepository(db),
		ping: func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		},
		close: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				logger.Error("mongo disconnect error", slog.String("error", err.Error()))
			}
		},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		AppName:         "catalog",
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "catalog")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	return &backend{
		products: postgres.NewProductRepository(pool),
		refs:     postgres.NewReferenceRepository(pool),
		ping:     pool.Ping,
		close:    pool.Close,
	}, nil
}
