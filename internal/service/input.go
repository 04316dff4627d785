package service

import (
	"bytes"
	"encoding/json"

	"github.com/shopcore/catalog/internal/domain"
	apperrors "github.com/shopcore/catalog/pkg/errors"
)

// ProductInput is a create or update payload. Nil fields are absent and leave
// the target untouched. Category and Brands carry free-text names that are
// resolved to reference ids. Colors and Sizes accept either a JSON array or a
// string holding one, which is how multipart forms deliver them.
//
// Which fields apply depends on the update target: product-level updates use
// the product fields, color updates use Color, Image and Sizes, and size
// updates use Size, Stock, Price and Attributes.
type ProductInput struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	Price       *int64          `json:"price"`
	Stock       *int            `json:"stock"`
	Attributes  map[string]any  `json:"attributes"`
	Category    *string         `json:"category"`
	Brands      *string         `json:"brands"`
	Colors      json.RawMessage `json:"colors"`
	Color       *string         `json:"color"`
	Image       *string         `json:"image"`
	Size        *string         `json:"size"`
	Sizes       json.RawMessage `json:"sizes"`

	// Files are the uploaded images in request order. The Nth file pairs with
	// the Nth entry of Colors.
	Files []domain.UploadedFile `json:"-"`
}

// UpdateTarget addresses what an update applies to. An empty ColorID targets
// the product itself; SizeID is only meaningful together with ColorID.
type UpdateTarget struct {
	ProductID string
	ColorID   string
	SizeID    string
}

// decodeColors parses the colors field. A nil result means the field was absent.
func decodeColors(raw json.RawMessage) ([]domain.ColorVariant, error) {
	var colors []domain.ColorVariant
	present, err := decodeList(raw, &colors)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid colors format")
	}
	if present && colors == nil {
		colors = []domain.ColorVariant{}
	}
	return colors, nil
}

// decodeSizes parses the sizes field. A nil result means the field was absent.
func decodeSizes(raw json.RawMessage) ([]domain.SizeVariant, error) {
	var sizes []domain.SizeVariant
	present, err := decodeList(raw, &sizes)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid sizes format")
	}
	if present && sizes == nil {
		sizes = []domain.SizeVariant{}
	}
	return sizes, nil
}

// decodeList unmarshals raw into dst, unwrapping one level of string
// encoding. Missing, null and empty-string values report present=false.
func decodeList(raw json.RawMessage, dst any) (present bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return false, err
		}
		if text == "" {
			return false, nil
		}
		raw = json.RawMessage(text)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}
