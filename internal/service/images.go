package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/shopcore/catalog/internal/domain"
	apperrors "github.com/shopcore/catalog/pkg/errors"
)

// storeImages moves every file whose index is below pairs into the image
// store and points colors[i].Image at it. Files at or beyond pairs have no
// partner and are skipped with a warning. All files are copied concurrently;
// if any copy fails the files already written are removed and colors is left
// unchanged.
//
// The returned slice is indexed like files and holds the stored name, or ""
// for skipped indices.
func (s *ProductService) storeImages(ctx context.Context, files []domain.UploadedFile, colors []domain.ColorVariant, pairs int) ([]string, error) {
	stored := make([]string, len(files))
	if len(files) == 0 {
		return stored, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		if i >= pairs {
			s.logger.WarnContext(ctx, "file or color entry is missing, skipping",
				slog.Int("index", i),
				slog.String("file", file.OriginalName),
			)
			continue
		}

		g.Go(func() error {
			name := file.PermanentName()
			if err := s.images.Put(gctx, name, file.TempPath); err != nil {
				return fmt.Errorf("store image %d (%s): %w", i, file.OriginalName, err)
			}
			stored[i] = name
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.removeImages(ctx, written(stored), removeReasonRollback)
		return nil, err
	}

	for i, name := range stored {
		if name != "" {
			colors[i].Image = name
			ImagesStored.Inc()
		}
	}
	return stored, nil
}

// removeImages deletes names from the image store. Failures and missing files
// are logged; removal is best effort.
func (s *ProductService) removeImages(ctx context.Context, names []string, reason string) {
	for _, name := range names {
		removed, err := s.images.Remove(ctx, name)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to remove image",
				slog.String("image", name),
				slog.String("reason", reason),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !removed {
			s.logger.InfoContext(ctx, "image not found in store",
				slog.String("image", name),
				slog.String("reason", reason),
			)
			continue
		}
		ImagesRemoved.WithLabelValues(reason).Inc()
	}
}

// written returns the non-empty names of stored.
func written(stored []string) []string {
	names := make([]string, 0, len(stored))
	for _, name := range stored {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// checkImages rejects image names on p that are neither in known nor
// produced by this request's uploads. Clients may keep or move a product's
// own images but cannot point a color at any other file in the store.
func checkImages(p *domain.Product, known ...[]string) error {
	allowed := make(map[string]struct{})
	for _, names := range known {
		for _, name := range names {
			allowed[name] = struct{}{}
		}
	}
	for _, name := range p.Images() {
		if _, ok := allowed[name]; !ok {
			return apperrors.InvalidInput(fmt.Sprintf("image %q does not belong to this product", name))
		}
	}
	return nil
}
