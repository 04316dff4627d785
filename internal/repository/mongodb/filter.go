package mongodb

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/shopcore/catalog/internal/repository"
)

// containsFold matches fields containing s case-insensitively. s is escaped,
// so it is always a literal substring.
func containsFold(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// buildProductFilter translates a ProductFilter into a products query.
func buildProductFilter(f repository.ProductFilter) (bson.M, error) {
	filter := bson.M{}

	if f.Search != nil && *f.Search != "" {
		filter["name"] = containsFold(*f.Search)
	}

	if f.CategoryID != nil {
		oid, err := parseObjectID("category id", *f.CategoryID)
		if err != nil {
			return nil, err
		}
		filter["category"] = oid
	}

	if f.BrandID != nil {
		oid, err := parseObjectID("brand id", *f.BrandID)
		if err != nil {
			return nil, err
		}
		filter["brands"] = oid
	}

	return filter, nil
}
