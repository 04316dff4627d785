package domain

import (
	"time"
)

// Product is a catalog product. Category and brand are stored as references
// to their own collections; color variants are embedded.
type Product struct {
	ID          string         `json:"id"`
	Name        string         `json:"name" validate:"required,min=1,max=500"`
	Description string         `json:"description"`
	Price       int64          `json:"price" validate:"gte=0"`
	Stock       int            `json:"stock" validate:"gte=0"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	CategoryID  *string        `json:"category,omitempty"`
	BrandID     *string        `json:"brands,omitempty"`
	Colors      []ColorVariant `json:"colors" validate:"dive"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ColorVariant is one color of a product with its image and sizes.
type ColorVariant struct {
	ID    string        `json:"id"`
	Color string        `json:"color" validate:"required"`
	Image string        `json:"image,omitempty"`
	Sizes []SizeVariant `json:"sizes" validate:"dive"`
}

// SizeVariant is one size within a color variant.
type SizeVariant struct {
	ID         string         `json:"id"`
	Size       string         `json:"size" validate:"required"`
	Stock      int            `json:"stock" validate:"gte=0"`
	Price      *int64         `json:"price,omitempty" validate:"omitempty,gte=0"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ProductDetail is a product with its category and brand references expanded.
// The expanded fields shadow the raw reference ids in JSON output.
type ProductDetail struct {
	Product
	Category *Reference `json:"category,omitempty"`
	Brand    *Reference `json:"brands,omitempty"`
}

// FindColor returns the color variant with the given id, or nil.
func (p *Product) FindColor(id string) *ColorVariant {
	for i := range p.Colors {
		if p.Colors[i].ID == id {
			return &p.Colors[i]
		}
	}
	return nil
}

// FindSize returns the size variant with the given id, or nil.
func (c *ColorVariant) FindSize(id string) *SizeVariant {
	for i := range c.Sizes {
		if c.Sizes[i].ID == id {
			return &c.Sizes[i]
		}
	}
	return nil
}

// Images returns the image filenames referenced by the product's colors, in
// color order, skipping colors without an image.
func (p *Product) Images() []string {
	images := make([]string, 0, len(p.Colors))
	for _, c := range p.Colors {
		if c.Image != "" {
			images = append(images, c.Image)
		}
	}
	return images
}

// References reports whether any color of the product uses the image.
func (p *Product) References(image string) bool {
	if image == "" {
		return false
	}
	for _, c := range p.Colors {
		if c.Image == image {
			return true
		}
	}
	return false
}

// AssignVariantIDs gives every color and size without a well-formed id a
// fresh one. Existing ids are kept so variants stay addressable across updates.
func (p *Product) AssignVariantIDs() {
	for i := range p.Colors {
		if !IsObjectID(p.Colors[i].ID) {
			p.Colors[i].ID = NewID()
		}
		for j := range p.Colors[i].Sizes {
			if !IsObjectID(p.Colors[i].Sizes[j].ID) {
				p.Colors[i].Sizes[j].ID = NewID()
			}
		}
	}
}
