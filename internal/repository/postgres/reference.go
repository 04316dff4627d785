package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/pkg/database"
	apperrors "github.com/shopcore/catalog/pkg/errors"
)

var referenceTables = map[domain.ReferenceKind]string{
	domain.ReferenceCategory: "categories",
	domain.ReferenceBrand:    "brands",
}

// ReferenceRepository implements repository.ReferenceRepository over the
// categories and brands tables.
type ReferenceRepository struct {
	db database.DBTX
}

// NewReferenceRepository creates a new PostgreSQL-backed reference repository.
func NewReferenceRepository(db database.DBTX) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func referenceTable(kind domain.ReferenceKind) (string, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return "", fmt.Errorf("unknown reference kind %q", kind)
	}
	return table, nil
}

// FindFirstByName returns the oldest entity whose name contains name.
func (r *ReferenceRepository) FindFirstByName(ctx context.Context, kind domain.ReferenceKind, name string) (_ *domain.Reference, err error) {
	table, err := referenceTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, name FROM %s WHERE name ~* $1 ORDER BY created_at, id LIMIT 1`, table)

	ctx, end := database.TraceQuery(ctx, "FindReference", query)
	defer func() { end(err) }()

	var ref domain.Reference
	if err = r.db.QueryRow(ctx, query, regexp.QuoteMeta(name)).Scan(&ref.ID, &ref.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound(string(kind), name)
		}
		return nil, fmt.Errorf("find %s by name: %w", kind, err)
	}
	return &ref, nil
}

// ListAll returns every entity of kind ordered by name.
func (r *ReferenceRepository) ListAll(ctx context.Context, kind domain.ReferenceKind) (_ []domain.Reference, err error) {
	table, err := referenceTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, name FROM %s ORDER BY name, id`, table)

	ctx, end := database.TraceQuery(ctx, "ListReferences", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	refs := []domain.Reference{}
	for rows.Next() {
		var ref domain.Reference
		if err = rows.Scan(&ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		refs = append(refs, ref)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", kind, err)
	}
	return refs, nil
}
