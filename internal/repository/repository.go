package repository

import (
	"context"

	"github.com/shopcore/catalog/internal/domain"
)

// ProductFilter defines filter criteria for listing products. Category and
// brand are already-resolved reference ids; nil fields add no clause.
type ProductFilter struct {
	Search     *string
	CategoryID *string
	BrandID    *string
	Skip       int
	Limit      int
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product into the store.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by its identifier. A malformed id is an
	// unclassified error, a missing product is apperrors.NotFound.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetDetail is GetByID with the category and brand references expanded.
	GetDetail(ctx context.Context, id string) (*domain.ProductDetail, error)

	// List returns the filter's window of products with references expanded.
	List(ctx context.Context, filter ProductFilter) ([]domain.ProductDetail, error)

	// Count returns the number of products matching the filter, ignoring
	// Skip and Limit.
	Count(ctx context.Context, filter ProductFilter) (int, error)

	// Update replaces the stored product if its version still equals
	// product.Version, then increments product.Version. A version mismatch is
	// apperrors.Conflict.
	Update(ctx context.Context, product *domain.Product) error

	// Delete removes a product from the store by its identifier.
	Delete(ctx context.Context, id string) error
}

// ReferenceRepository reads the category and brand collections.
type ReferenceRepository interface {
	// FindFirstByName returns the first entity of kind whose name contains
	// name case-insensitively, matched as a literal substring. No match is
	// apperrors.NotFound.
	FindFirstByName(ctx context.Context, kind domain.ReferenceKind, name string) (*domain.Reference, error)

	// ListAll returns every entity of kind ordered by name.
	ListAll(ctx context.Context, kind domain.ReferenceKind) ([]domain.Reference, error)
}
