package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/pkg/database"
	apperrors "github.com/shopcore/catalog/pkg/errors"
)

// ReferenceRepository implements repository.ReferenceRepository over the
// categories and brands collections.
type ReferenceRepository struct {
	collections map[domain.ReferenceKind]*mongo.Collection
}

// NewReferenceRepository creates a new MongoDB-backed reference repository.
func NewReferenceRepository(db *mongo.Database) *ReferenceRepository {
	return &ReferenceRepository{
		collections: map[domain.ReferenceKind]*mongo.Collection{
			domain.ReferenceCategory: db.Collection(CategoriesCollection),
			domain.ReferenceBrand:    db.Collection(BrandsCollection),
		},
	}
}

func (r *ReferenceRepository) collection(kind domain.ReferenceKind) (*mongo.Collection, error) {
	coll, ok := r.collections[kind]
	if !ok {
		return nil, fmt.Errorf("unknown reference kind %q", kind)
	}
	return coll, nil
}

// FindFirstByName returns the oldest entity whose name contains name.
func (r *ReferenceRepository) FindFirstByName(ctx context.Context, kind domain.ReferenceKind, name string) (_ *domain.Reference, err error) {
	coll, err := r.collection(kind)
	if err != nil {
		return nil, err
	}

	ctx, end := database.TraceCommand(ctx, "FindReference", coll.Name()+".find")
	defer func() { end(err) }()

	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})

	var doc referenceDocument
	if err = coll.FindOne(ctx, bson.M{"name": containsFold(name)}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.NotFound(string(kind), name)
		}
		return nil, fmt.Errorf("find %s by name: %w", kind, err)
	}

	ref := doc.toDomain()
	return &ref, nil
}

// ListAll returns every entity of kind ordered by name.
func (r *ReferenceRepository) ListAll(ctx context.Context, kind domain.ReferenceKind) (_ []domain.Reference, err error) {
	coll, err := r.collection(kind)
	if err != nil {
		return nil, err
	}

	ctx, end := database.TraceCommand(ctx, "ListReferences", coll.Name()+".find")
	defer func() { end(err) }()

	cursor, err := coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}

	var docs []referenceDocument
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}

	refs := make([]domain.Reference, 0, len(docs))
	for i := range docs {
		refs = append(refs, docs[i].toDomain())
	}
	return refs, nil
}
