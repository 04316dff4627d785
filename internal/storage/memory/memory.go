package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/shopcore/catalog/internal/storage"
)

// Storage implements storage.Storage using an in-memory map. Staged files
// are read from disk and removed, exactly like the local backend.
type Storage struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// New creates a new in-memory image store.
func New() *Storage {
	return &Storage{files: make(map[string][]byte)}
}

// Put reads srcPath into memory under name and removes srcPath.
func (s *Storage) Put(_ context.Context, name, srcPath string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read staged file: %w", err)
	}

	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()

	if err := os.Remove(srcPath); err != nil {
		return fmt.Errorf("remove staged file: %w", err)
	}
	return nil
}

// Remove deletes the named entry.
func (s *Storage) Remove(_ context.Context, name string) (bool, error) {
	if err := storage.ValidateName(name); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[name]; !ok {
		return false, nil
	}
	delete(s.files, name)
	return true, nil
}

// Exists reports whether the named entry is present.
func (s *Storage) Exists(_ context.Context, name string) (bool, error) {
	if err := storage.ValidateName(name); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[name]
	return ok, nil
}

// Path returns name unchanged; memory entries have no location.
func (s *Storage) Path(name string) string {
	return name
}

// Seed stores data under name directly. Intended for tests.
func (s *Storage) Seed(name string, data []byte) {
	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()
}

// Names returns the stored names in sorted order.
func (s *Storage) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the bytes stored under name.
func (s *Storage) Get(name string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	return data, ok
}
