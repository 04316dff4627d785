package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/internal/repository"
	"github.com/shopcore/catalog/pkg/database"
	apperrors "github.com/shopcore/catalog/pkg/errors"
)

const productColumns = `p.id, p.name, p.description, p.price, p.stock, p.attributes,
		p.category_id, p.brand_id, p.colors, p.version, p.created_at, p.updated_at`

const detailColumns = productColumns + `, c.name, b.name`

const detailFrom = `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		LEFT JOIN brands b ON b.id = p.brand_id`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) (err error) {
	query := `
		INSERT INTO products (id, name, description, price, stock, attributes, category_id, brand_id, colors, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	ctx, end := database.TraceQuery(ctx, "CreateProduct", query)
	defer func() { end(err) }()

	attributesJSON, colorsJSON, err := marshalProduct(p)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		attributesJSON,
		p.CategoryID,
		p.BrandID,
		colorsJSON,
		p.Version,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("product", "id", p.ID)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (_ *domain.Product, err error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	ctx, end := database.TraceQuery(ctx, "GetProduct", query)
	defer func() { end(err) }()

	if err = checkID("product id", id); err != nil {
		return nil, err
	}

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// GetDetail retrieves a product with its category and brand names joined in.
func (r *ProductRepository) GetDetail(ctx context.Context, id string) (_ *domain.ProductDetail, err error) {
	query := `SELECT ` + detailColumns + detailFrom + ` WHERE p.id = $1`

	ctx, end := database.TraceQuery(ctx, "GetProductDetail", query)
	defer func() { end(err) }()

	if err = checkID("product id", id); err != nil {
		return nil, err
	}

	d, err := scanDetail(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return d, nil
}

// List returns the requested window of matching products, newest first.
func (r *ProductRepository) List(ctx context.Context, f repository.ProductFilter) (_ []domain.ProductDetail, err error) {
	where, args := buildWhere(f)

	query := `SELECT ` + detailColumns + detailFrom + where + `
		ORDER BY p.created_at DESC, p.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	args = append(args, f.Skip)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	details := []domain.ProductDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		details = append(details, *d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return details, nil
}

// Count returns the number of products matching the filter.
func (r *ProductRepository) Count(ctx context.Context, f repository.ProductFilter) (_ int, err error) {
	where, args := buildWhere(f)
	query := `SELECT count(*) FROM products p` + where

	ctx, end := database.TraceQuery(ctx, "CountProducts", query)
	defer func() { end(err) }()

	var n int
	if err = r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

// Update overwrites the product row if its stored version still matches.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) (err error) {
	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock = $4, attributes = $5,
		    category_id = $6, brand_id = $7, colors = $8, version = version + 1, updated_at = $9
		WHERE id = $10 AND version = $11`

	ctx, end := database.TraceQuery(ctx, "UpdateProduct", query)
	defer func() { end(err) }()

	attributesJSON, colorsJSON, err := marshalProduct(p)
	if err != nil {
		return err
	}

	updatedAt := time.Now().UTC()

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.Stock,
		attributesJSON,
		p.CategoryID,
		p.BrandID,
		colorsJSON,
		updatedAt,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		var exists bool
		if err = r.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", p.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check product existence: %w", err)
		}
		if !exists {
			return apperrors.NotFound("product", p.ID)
		}
		return apperrors.Conflict(fmt.Sprintf("product %s was modified concurrently", p.ID))
	}

	p.Version++
	p.UpdatedAt = updatedAt
	return nil
}

// Delete removes a product from the database by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) (err error) {
	query := `DELETE FROM products WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteProduct", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// buildWhere translates a filter into a WHERE clause over products p and its
// positional arguments. The search term is matched as a literal substring.
func buildWhere(f repository.ProductFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if f.Search != nil && *f.Search != "" {
		args = append(args, regexp.QuoteMeta(*f.Search))
		conditions = append(conditions, fmt.Sprintf("p.name ~* $%d", len(args)))
	}

	if f.CategoryID != nil {
		args = append(args, *f.CategoryID)
		conditions = append(conditions, fmt.Sprintf("p.category_id = $%d", len(args)))
	}

	if f.BrandID != nil {
		args = append(args, *f.BrandID)
		conditions = append(conditions, fmt.Sprintf("p.brand_id = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "\n\t\tWHERE " + strings.Join(conditions, " AND "), args
}

func marshalProduct(p *domain.Product) (attributes, colors []byte, err error) {
	if p.Attributes != nil {
		if attributes, err = json.Marshal(p.Attributes); err != nil {
			return nil, nil, fmt.Errorf("marshal attributes: %w", err)
		}
	}

	variants := p.Colors
	if variants == nil {
		variants = []domain.ColorVariant{}
	}
	if colors, err = json.Marshal(variants); err != nil {
		return nil, nil, fmt.Errorf("marshal colors: %w", err)
	}
	return attributes, colors, nil
}

func productTargets(p *domain.Product, attributesJSON, colorsJSON *[]byte) []any {
	return []any{
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		attributesJSON,
		&p.CategoryID,
		&p.BrandID,
		colorsJSON,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		p                          domain.Product
		attributesJSON, colorsJSON []byte
	)

	if err := row.Scan(productTargets(&p, &attributesJSON, &colorsJSON)...); err != nil {
		return nil, err
	}
	if err := unmarshalProduct(&p, attributesJSON, colorsJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanDetail(row pgx.Row) (*domain.ProductDetail, error) {
	var (
		d                          domain.ProductDetail
		attributesJSON, colorsJSON []byte
		categoryName, brandName    *string
	)

	targets := append(productTargets(&d.Product, &attributesJSON, &colorsJSON), &categoryName, &brandName)
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	if err := unmarshalProduct(&d.Product, attributesJSON, colorsJSON); err != nil {
		return nil, err
	}

	if d.CategoryID != nil && categoryName != nil {
		d.Category = &domain.Reference{ID: *d.CategoryID, Name: *categoryName}
	}
	if d.BrandID != nil && brandName != nil {
		d.Brand = &domain.Reference{ID: *d.BrandID, Name: *brandName}
	}
	return &d, nil
}

func unmarshalProduct(p *domain.Product, attributesJSON, colorsJSON []byte) error {
	if attributesJSON != nil {
		if err := json.Unmarshal(attributesJSON, &p.Attributes); err != nil {
			return fmt.Errorf("unmarshal attributes: %w", err)
		}
	}

	p.Colors = []domain.ColorVariant{}
	if colorsJSON != nil {
		if err := json.Unmarshal(colorsJSON, &p.Colors); err != nil {
			return fmt.Errorf("unmarshal colors: %w", err)
		}
	}
	return nil
}

func checkID(field, id string) error {
	if !domain.IsObjectID(id) {
		return fmt.Errorf("parse %s %q: not a 24-character hex id", field, id)
	}
	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
