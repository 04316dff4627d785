package mongodb

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shopcore/catalog/internal/domain"
)

type productDocument struct {
	ID          primitive.ObjectID  `bson:"_id"`
	Name        string              `bson:"name"`
	Description string              `bson:"description"`
	Price       int64               `bson:"price"`
	Stock       int                 `bson:"stock"`
	Attributes  map[string]any      `bson:"attributes,omitempty"`
	Category    *primitive.ObjectID `bson:"category,omitempty"`
	Brands      *primitive.ObjectID `bson:"brands,omitempty"`
	Colors      []colorDocument     `bson:"colors"`
	Version     int                 `bson:"version"`
	CreatedAt   time.Time           `bson:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt"`
}

type colorDocument struct {
	ID    primitive.ObjectID `bson:"_id"`
	Color string             `bson:"color"`
	Image string             `bson:"image,omitempty"`
	Sizes []sizeDocument     `bson:"sizes"`
}

type sizeDocument struct {
	ID         primitive.ObjectID `bson:"_id"`
	Size       string             `bson:"size"`
	Stock      int                `bson:"stock"`
	Price      *int64             `bson:"price,omitempty"`
	Attributes map[string]any     `bson:"attributes,omitempty"`
}

type referenceDocument struct {
	ID   primitive.ObjectID `bson:"_id"`
	Name string             `bson:"name"`
}

func parseObjectID(field, hex string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("parse %s %q: %w", field, hex, err)
	}
	return oid, nil
}

func parseOptionalObjectID(field string, hex *string) (*primitive.ObjectID, error) {
	if hex == nil {
		return nil, nil
	}
	oid, err := parseObjectID(field, *hex)
	if err != nil {
		return nil, err
	}
	return &oid, nil
}

func hexPtr(oid *primitive.ObjectID) *string {
	if oid == nil {
		return nil
	}
	s := oid.Hex()
	return &s
}

func toProductDocument(p *domain.Product) (*productDocument, error) {
	id, err := parseObjectID("product id", p.ID)
	if err != nil {
		return nil, err
	}
	category, err := parseOptionalObjectID("category id", p.CategoryID)
	if err != nil {
		return nil, err
	}
	brand, err := parseOptionalObjectID("brand id", p.BrandID)
	if err != nil {
		return nil, err
	}

	doc := &productDocument{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Attributes:  p.Attributes,
		Category:    category,
		Brands:      brand,
		Colors:      make([]colorDocument, 0, len(p.Colors)),
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}

	for _, c := range p.Colors {
		colorID, err := parseObjectID("color id", c.ID)
		if err != nil {
			return nil, err
		}
		cd := colorDocument{ID: colorID, Color: c.Color, Image: c.Image, Sizes: make([]sizeDocument, 0, len(c.Sizes))}
		for _, s := range c.Sizes {
			sizeID, err := parseObjectID("size id", s.ID)
			if err != nil {
				return nil, err
			}
			cd.Sizes = append(cd.Sizes, sizeDocument{
				ID:         sizeID,
				Size:       s.Size,
				Stock:      s.Stock,
				Price:      s.Price,
				Attributes: s.Attributes,
			})
		}
		doc.Colors = append(doc.Colors, cd)
	}

	return doc, nil
}

func (d *productDocument) toDomain() domain.Product {
	p := domain.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Stock:       d.Stock,
		Attributes:  d.Attributes,
		CategoryID:  hexPtr(d.Category),
		BrandID:     hexPtr(d.Brands),
		Colors:      make([]domain.ColorVariant, 0, len(d.Colors)),
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}

	for _, cd := range d.Colors {
		c := domain.ColorVariant{ID: cd.ID.Hex(), Color: cd.Color, Image: cd.Image, Sizes: make([]domain.SizeVariant, 0, len(cd.Sizes))}
		for _, sd := range cd.Sizes {
			c.Sizes = append(c.Sizes, domain.SizeVariant{
				ID:         sd.ID.Hex(),
				Size:       sd.Size,
				Stock:      sd.Stock,
				Price:      sd.Price,
				Attributes: sd.Attributes,
			})
		}
		p.Colors = append(p.Colors, c)
	}

	return p
}

func (d *referenceDocument) toDomain() domain.Reference {
	return domain.Reference{ID: d.ID.Hex(), Name: d.Name}
}
