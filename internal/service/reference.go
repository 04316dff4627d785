package service

import (
	"context"
	"fmt"

	"github.com/shopcore/catalog/internal/domain"
	"github.com/shopcore/catalog/internal/repository"
)

// ReferenceService exposes the categories and brands products can refer to.
type ReferenceService struct {
	repo repository.ReferenceRepository
}

// NewReferenceService creates a new reference service.
func NewReferenceService(repo repository.ReferenceRepository) *ReferenceService {
	return &ReferenceService{repo: repo}
}

// ListReferences returns every category or brand ordered by name.
func (s *ReferenceService) ListReferences(ctx context.Context, kind domain.ReferenceKind) ([]domain.Reference, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("list references: unknown kind %q", kind)
	}
	refs, err := s.repo.ListAll(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s references: %w", kind, err)
	}
	return refs, nil
}
