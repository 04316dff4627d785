package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shopcore/catalog/internal/storage"
)

// ProductImagesDir is the image directory below the application root.
const ProductImagesDir = "public/images/products"

// Storage implements storage.Storage on a local directory.
type Storage struct {
	dir string
}

// New creates the image directory if needed and returns a store rooted at it.
func New(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir %s: %w", dir, err)
	}
	return &Storage{dir: dir}, nil
}

// Dir returns the directory the store writes to.
func (s *Storage) Dir() string {
	return s.dir
}

// Put copies srcPath into the store under name, then removes srcPath.
func (s *Storage) Put(_ context.Context, name, srcPath string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create image %s: %w", name, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(s.Path(name))
		return fmt.Errorf("copy image %s: %w", name, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(s.Path(name))
		return fmt.Errorf("close image %s: %w", name, err)
	}

	src.Close()
	if err := os.Remove(srcPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// Remove deletes the named image. Missing files are not an error.
func (s *Storage) Remove(_ context.Context, name string) (bool, error) {
	if err := storage.ValidateName(name); err != nil {
		return false, err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove image %s: %w", name, err)
	}
	return true, nil
}

// Exists reports whether the named image is present.
func (s *Storage) Exists(_ context.Context, name string) (bool, error) {
	if err := storage.ValidateName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(s.Path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat image %s: %w", name, err)
	}
}

// Path returns the absolute location of the named image.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.dir, name)
}
