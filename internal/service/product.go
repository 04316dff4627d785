package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/internal/repository"
	"github.com/shopcore/catalog/internal/storage"
	apperrors "github.com/shopcore/catalog/pkg/errors"
	"github.com/shopcore/catalog/pkg/pagination"
	"github.com/shopcore/catalog/pkg/tracing"
	"github.com/shopcore/catalog/pkg/validator"
)

// List window defaults.
const (
	DefaultLimit = pagination.DefaultLimit
	MaxLimit     = pagination.MaxLimit
)

// ReferenceResolver maps a free-text name to a reference id.
type ReferenceResolver interface {
	Resolve(ctx context.Context, kind domain.ReferenceKind, name string) (id string, ok bool, err error)
}

// EventPublisher publishes product lifecycle events.
type EventPublisher interface {
	PublishProductCreated(ctx context.Context, product *domain.Product) error
	PublishProductUpdated(ctx context.Context, product *domain.Product) error
	PublishProductDeleted(ctx context.Context, product *domain.Product) error
}

// ProductService implements the business logic for product operations.
type ProductService struct {
	repo     repository.ProductRepository
	resolver ReferenceResolver
	images   storage.Storage
	events   EventPublisher
	logger   *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(
	repo repository.ProductRepository,
	resolver ReferenceResolver,
	images storage.Storage,
	events EventPublisher,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:     repo,
		resolver: resolver,
		images:   images,
		events:   events,
		logger:   logger,
	}
}

// ListParams holds the query parameters for listing products.
type ListParams struct {
	Skip     int
	Limit    int
	Query    string
	Category string
	Brands   string
}

// CreateProduct creates a product from the payload, storing uploaded images
// for the colors they pair with.
func (s *ProductService) CreateProduct(ctx context.Context, in *ProductInput) (_ *domain.Product, err error) {
	ctx, span := tracing.Start(ctx, "ProductService.CreateProduct",
		attribute.Int("product.files", len(in.Files)))
	defer func() { tracing.End(span, err) }()

	colors, err := decodeColors(in.Colors)
	if err != nil {
		return nil, err
	}
	if colors == nil {
		colors = []domain.ColorVariant{}
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:         domain.NewID(),
		Attributes: in.Attributes,
		Colors:     colors,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyProductFields(product, in)

	if product.CategoryID, err = s.resolve(ctx, domain.ReferenceCategory, in.Category); err != nil {
		return nil, err
	}
	if product.BrandID, err = s.resolve(ctx, domain.ReferenceBrand, in.Brands); err != nil {
		return nil, err
	}

	product.AssignVariantIDs()
	span.SetAttributes(attribute.String("product.id", product.ID))

	stored, err := s.storeImages(ctx, in.Files, product.Colors, len(product.Colors))
	if err != nil {
		return nil, fmt.Errorf("store product images: %w", err)
	}

	if err := checkImages(product, written(stored)); err != nil {
		s.removeImages(ctx, written(stored), removeReasonRollback)
		return nil, err
	}

	if err := validator.Validate(product); err != nil {
		s.removeImages(ctx, written(stored), removeReasonRollback)
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		s.removeImages(ctx, written(stored), removeReasonRollback)
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := s.events.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.Int("images", len(written(stored))),
	)

	return product, nil
}

// GetProduct retrieves a product with its category and brand expanded.
func (s *ProductService) GetProduct(ctx context.Context, id string) (*domain.ProductDetail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return detail, nil
}

// ListProducts returns a window of matching products and the total number of
// matches. Category and brand names that do not resolve add no filter.
func (s *ProductService) ListProducts(ctx context.Context, params ListParams) ([]domain.ProductDetail, int, error) {
	window := pagination.Window{Skip: params.Skip, Limit: params.Limit}.Clamp()
	filter := repository.ProductFilter{
		Skip:  window.Skip,
		Limit: window.Limit,
	}
	if params.Query != "" {
		filter.Search = &params.Query
	}

	var err error
	if filter.CategoryID, err = s.resolve(ctx, domain.ReferenceCategory, &params.Category); err != nil {
		return nil, 0, err
	}
	if filter.BrandID, err = s.resolve(ctx, domain.ReferenceBrand, &params.Brands); err != nil {
		return nil, 0, err
	}

	var (
		products []domain.ProductDetail
		total    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if total, err = s.repo.Count(gctx, filter); err != nil {
			return fmt.Errorf("count products: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if products, err = s.repo.List(gctx, filter); err != nil {
			return fmt.Errorf("list products: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// UpdateProduct applies the payload to the product, one of its colors, or
// one size of a color, depending on target.
//
// Uploaded files replace the images of the existing colors at the same
// index. Images the saved product no longer references, whether replaced,
// cleared or dropped with their color, are deleted only once the product has
// been saved; if anything fails before that, the new files are removed and
// the stored product keeps its old images. A color may only name an image
// the product already had or one uploaded with this request.
func (s *ProductService) UpdateProduct(ctx context.Context, target UpdateTarget, in *ProductInput) (_ *domain.Product, err error) {
	ctx, span := tracing.Start(ctx, "ProductService.UpdateProduct",
		attribute.String("product.id", target.ProductID),
		attribute.String("product.color_id", target.ColorID),
		attribute.String("product.size_id", target.SizeID),
		attribute.Int("product.files", len(in.Files)),
	)
	defer func() { tracing.End(span, err) }()

	incoming, err := decodeColors(in.Colors)
	if err != nil {
		return nil, err
	}
	sizes, err := decodeSizes(in.Sizes)
	if err != nil {
		return nil, err
	}

	product, err := s.repo.GetByID(ctx, target.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	var categoryID, brandID *string
	if target.ColorID == "" {
		if categoryID, err = s.resolve(ctx, domain.ReferenceCategory, in.Category); err != nil {
			return nil, err
		}
		if brandID, err = s.resolve(ctx, domain.ReferenceBrand, in.Brands); err != nil {
			return nil, err
		}
	}

	previous := product.Images()

	var stored []string
	if incoming != nil {
		pairs := min(len(incoming), len(product.Colors))
		if stored, err = s.storeImages(ctx, in.Files, incoming, pairs); err != nil {
			return nil, fmt.Errorf("store product images: %w", err)
		}
	} else if len(in.Files) > 0 {
		s.logger.WarnContext(ctx, "files received without colors, skipping",
			slog.String("product_id", product.ID),
			slog.Int("files", len(in.Files)),
		)
	}
	newImages := written(stored)

	if err := s.merge(product, target, in, incoming, sizes, categoryID, brandID); err != nil {
		s.removeImages(ctx, newImages, removeReasonRollback)
		return nil, err
	}

	if err := checkImages(product, previous, newImages); err != nil {
		s.removeImages(ctx, newImages, removeReasonRollback)
		return nil, err
	}

	if err := validator.Validate(product); err != nil {
		s.removeImages(ctx, newImages, removeReasonRollback)
		return nil, err
	}

	if err := s.repo.Update(ctx, product); err != nil {
		s.removeImages(ctx, newImages, removeReasonRollback)
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.removeImages(ctx, unreferenced(product, previous), removeReasonReplaced)
	s.removeImages(ctx, unreferenced(product, newImages), removeReasonOrphaned)

	if err := s.events.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.String("color_id", target.ColorID),
		slog.String("size_id", target.SizeID),
		slog.Int("version", product.Version),
	)

	return product, nil
}

// merge applies the payload to the part of product selected by target.
func (s *ProductService) merge(
	product *domain.Product,
	target UpdateTarget,
	in *ProductInput,
	colors []domain.ColorVariant,
	sizes []domain.SizeVariant,
	categoryID, brandID *string,
) error {
	if target.ColorID == "" {
		applyProductFields(product, in)
		if in.Attributes != nil {
			product.Attributes = in.Attributes
		}
		if categoryID != nil {
			product.CategoryID = categoryID
		}
		if brandID != nil {
			product.BrandID = brandID
		}
		if colors != nil {
			product.Colors = colors
		}
		product.AssignVariantIDs()
		return nil
	}

	color := product.FindColor(target.ColorID)
	if color == nil {
		return apperrors.NotFound("color", target.ColorID)
	}

	if target.SizeID == "" {
		if in.Color != nil {
			color.Color = *in.Color
		}
		if in.Image != nil {
			color.Image = *in.Image
		}
		if sizes != nil {
			color.Sizes = sizes
		}
		product.AssignVariantIDs()
		return nil
	}

	if size := color.FindSize(target.SizeID); size != nil {
		applySizeFields(size, in)
		return nil
	}

	size := domain.SizeVariant{ID: domain.NewID()}
	applySizeFields(&size, in)
	color.Sizes = append(color.Sizes, size)
	return nil
}

// DeleteProduct removes a product and then every image its colors reference.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) (err error) {
	ctx, span := tracing.Start(ctx, "ProductService.DeleteProduct", attribute.String("product.id", id))
	defer func() { tracing.End(span, err) }()

	if !domain.IsObjectID(id) {
		return apperrors.InvalidInput("invalid product id")
	}

	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get product by id: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	images := product.Images()
	s.removeImages(ctx, images, removeReasonDeleted)

	if err := s.events.PublishProductDeleted(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.deleted event",
			slog.String("product_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", id),
		slog.Int("images", len(images)),
	)

	return nil
}

// resolve turns a free-text name into a reference id. An absent, empty or
// unmatched name yields nil.
func (s *ProductService) resolve(ctx context.Context, kind domain.ReferenceKind, name *string) (*string, error) {
	if name == nil || *name == "" {
		return nil, nil
	}

	id, ok, err := s.resolver.Resolve(ctx, kind, *name)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", kind, err)
	}
	if !ok {
		s.logger.DebugContext(ctx, "reference name not resolved, dropping",
			slog.String("kind", string(kind)),
			slog.String("name", *name),
		)
		return nil, nil
	}
	return &id, nil
}

func applyProductFields(p *domain.Product, in *ProductInput) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
}

func applySizeFields(size *domain.SizeVariant, in *ProductInput) {
	if in.Size != nil {
		size.Size = *in.Size
	}
	if in.Stock != nil {
		size.Stock = *in.Stock
	}
	if in.Price != nil {
		price := *in.Price
		size.Price = &price
	}
	if in.Attributes != nil {
		size.Attributes = in.Attributes
	}
}

// unreferenced returns the names in images that no color of p uses.
func unreferenced(p *domain.Product, images []string) []string {
	var names []string
	for _, name := range images {
		if !p.References(name) {
			names = append(names, name)
		}
	}
	return names
}
