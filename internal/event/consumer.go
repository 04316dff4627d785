package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shopcore/catalog/internal/domain"
	pkgkafka "github.com/shopcore/catalog/pkg/kafka"
)

// Kafka topics consumed by the catalog service.
const (
	TopicCategoryChanged = "catalog.category.changed"
	TopicBrandChanged    = "catalog.brand.changed"
)

// CacheInvalidator drops cached name resolutions of a reference kind.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, kind domain.ReferenceKind) error
}

// ReferenceChangedData is the expected payload of a category or brand change.
type ReferenceChangedData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Consumer processes reference-change events for the catalog service.
type Consumer struct {
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewConsumer creates a new event consumer for the catalog service.
func NewConsumer(cache CacheInvalidator, logger *slog.Logger) *Consumer {
	return &Consumer{
		cache:  cache,
		logger: logger,
	}
}

// HandleCategoryChanged invalidates cached category resolutions.
func (c *Consumer) HandleCategoryChanged(ctx context.Context, event *pkgkafka.Event) error {
	return c.handle(ctx, domain.ReferenceCategory, event)
}

// HandleBrandChanged invalidates cached brand resolutions.
func (c *Consumer) HandleBrandChanged(ctx context.Context, event *pkgkafka.Event) error {
	return c.handle(ctx, domain.ReferenceBrand, event)
}

func (c *Consumer) handle(ctx context.Context, kind domain.ReferenceKind, event *pkgkafka.Event) error {
	var data ReferenceChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal %s.changed data: %w", kind, err)
	}

	c.logger.InfoContext(ctx, "processing reference change",
		slog.String("kind", string(kind)),
		slog.String("reference_id", data.ID),
		slog.String("name", data.Name),
	)

	if err := c.cache.Invalidate(ctx, kind); err != nil {
		return fmt.Errorf("invalidate %s cache: %w", kind, err)
	}

	return nil
}
