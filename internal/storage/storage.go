package storage

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/shopcore/catalog/pkg/errors"
)

// Storage defines the image store product colors reference by filename.
type Storage interface {
	// Put copies the staged file at srcPath into the store under name and
	// removes srcPath afterwards.
	Put(ctx context.Context, name, srcPath string) error

	// Remove deletes the named file. A missing file is reported as
	// removed=false with a nil error.
	Remove(ctx context.Context, name string) (removed bool, err error)

	// Exists reports whether the named file is in the store.
	Exists(ctx context.Context, name string) (bool, error)

	// Path returns the location of the named file within the store.
	Path(name string) string
}

// ValidateName rejects names that could escape the store directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return apperrors.InvalidInput(fmt.Sprintf("invalid image name %q", name))
	}
	return nil
}
