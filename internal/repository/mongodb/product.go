package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/internal/repository"
	"github.com/shopcore/catalog/pkg/database"
	apperrors "github.com/shopcore/catalog/pkg/errors"
)

// Collection names.
const (
	ProductsCollection   = "products"
	CategoriesCollection = "categories"
	BrandsCollection     = "brands"
)

// ProductRepository implements repository.ProductRepository using MongoDB.
type ProductRepository struct {
	products   *mongo.Collection
	categories *mongo.Collection
	brands     *mongo.Collection
}

// NewProductRepository creates a new MongoDB-backed product repository.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{
		products:   db.Collection(ProductsCollection),
		categories: db.Collection(CategoriesCollection),
		brands:     db.Collection(BrandsCollection),
	}
}

// EnsureIndexes creates the secondary indexes list queries rely on.
func (r *ProductRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "brands", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create product indexes: %w", err)
	}
	return nil
}

// Create inserts a new product document.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceCommand(ctx, "CreateProduct", "products.insert")
	defer func() { end(err) }()

	doc, err := toProductDocument(p)
	if err != nil {
		return err
	}

	if _, err = r.products.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("product", "id", p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	ctx, end := database.TraceCommand(ctx, "GetProduct", "products.find")
	defer func() { end(err) }()

	oid, err := parseObjectID("product id", id)
	if err != nil {
		return nil, err
	}

	var doc productDocument
	if err = r.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("find product: %w", err)
	}

	p := doc.toDomain()
	return &p, nil
}

// GetDetail retrieves a product with its category and brand expanded.
func (r *ProductRepository) GetDetail(ctx context.Context, id string) (*domain.ProductDetail, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := r.expand(ctx, []domain.Product{*p})
	if err != nil {
		return nil, err
	}
	return &details[0], nil
}

// List returns the requested window of matching products, newest first.
func (r *ProductRepository) List(ctx context.Context, f repository.ProductFilter) (_ []domain.ProductDetail, err error) {
	ctx, end := database.TraceCommand(ctx, "ListProducts", "products.find")
	defer func() { end(err) }()

	filter, err := buildProductFilter(f)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(f.Skip))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cursor, err := r.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}

	var docs []productDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(docs))
	for i := range docs {
		products = append(products, docs[i].toDomain())
	}

	return r.expand(ctx, products)
}

// Count returns the number of products matching the filter.
func (r *ProductRepository) Count(ctx context.Context, f repository.ProductFilter) (_ int, err error) {
	ctx, end := database.TraceCommand(ctx, "CountProducts", "products.count")
	defer func() { end(err) }()

	filter, err := buildProductFilter(f)
	if err != nil {
		return 0, err
	}

	n, err := r.products.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return int(n), nil
}

// Update replaces the product document if its stored version still matches.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceCommand(ctx, "UpdateProduct", "products.replace")
	defer func() { end(err) }()

	expected := p.Version
	updatedAt := time.Now().UTC()

	next := *p
	next.Version = expected + 1
	next.UpdatedAt = updatedAt

	doc, err := toProductDocument(&next)
	if err != nil {
		return err
	}

	res, err := r.products.ReplaceOne(ctx, bson.M{"_id": doc.ID, "version": expected}, doc)
	if err != nil {
		return fmt.Errorf("replace product: %w", err)
	}

	if res.MatchedCount == 0 {
		n, err := r.products.CountDocuments(ctx, bson.M{"_id": doc.ID})
		if err != nil {
			return fmt.Errorf("check product existence: %w", err)
		}
		if n == 0 {
			return apperrors.NotFound("product", p.ID)
		}
		return apperrors.Conflict(fmt.Sprintf("product %s was modified concurrently", p.ID))
	}

	p.Version = next.Version
	p.UpdatedAt = updatedAt
	return nil
}

// Delete removes a product document by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := database.TraceCommand(ctx, "DeleteProduct", "products.delete")
	defer func() { end(err) }()

	oid, err := parseObjectID("product id", id)
	if err != nil {
		return err
	}

	res, err := r.products.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// expand attaches category and brand names to products with one query per
// referenced collection.
func (r *ProductRepository) expand(ctx context.Context, products []domain.Product) ([]domain.ProductDetail, error) {
	var categoryIDs, brandIDs []primitive.ObjectID
	for _, p := range products {
		if oid, err := parseOptionalObjectID("category id", p.CategoryID); err == nil && oid != nil {
			categoryIDs = append(categoryIDs, *oid)
		}
		if oid, err := parseOptionalObjectID("brand id", p.BrandID); err == nil && oid != nil {
			brandIDs = append(brandIDs, *oid)
		}
	}

	categories, err := referencesByID(ctx, r.categories, categoryIDs)
	if err != nil {
		return nil, err
	}
	brands, err := referencesByID(ctx, r.brands, brandIDs)
	if err != nil {
		return nil, err
	}

	details := make([]domain.ProductDetail, 0, len(products))
	for _, p := range products {
		d := domain.ProductDetail{Product: p}
		if p.CategoryID != nil {
			if ref, ok := categories[*p.CategoryID]; ok {
				d.Category = &ref
			}
		}
		if p.BrandID != nil {
			if ref, ok := brands[*p.BrandID]; ok {
				d.Brand = &ref
			}
		}
		details = append(details, d)
	}
	return details, nil
}

func referencesByID(ctx context.Context, coll *mongo.Collection, ids []primitive.ObjectID) (map[string]domain.Reference, error) {
	refs := make(map[string]domain.Reference, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}

	cursor, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", coll.Name(), err)
	}

	var docs []referenceDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", coll.Name(), err)
	}
	for i := range docs {
		ref := docs[i].toDomain()
		refs[ref.ID] = ref
	}
	return refs, nil
}
