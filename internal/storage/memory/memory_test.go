package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shopcore/catalog/pkg/errors"
)

func TestStorage_PutRemoveExists(t *testing.T) {
	ctx := context.Background()
	s := New()

	src := filepath.Join(t.TempDir(), "upload")
	require.NoError(t, os.WriteFile(src, []byte("img"), 0o600))

	require.NoError(t, s.Put(ctx, "a.jpg", src))
	_, err := os.Stat(src)
	assert.ErrorIs(t, err, os.ErrNotExist)

	ok, err := s.Exists(ctx, "a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := s.Remove(ctx, "a.jpg")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(ctx, "a.jpg")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStorage_RejectsInvalidNames(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed("kept.jpg", []byte("img"))

	for _, name := range []string{"", "..", "../kept.jpg", "dir/kept.jpg", `dir\kept.jpg`} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Exists(ctx, name)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

			removed, err := s.Remove(ctx, name)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.False(t, removed)

			assert.ErrorIs(t, s.Put(ctx, name, "unused"), apperrors.ErrInvalidInput)
		})
	}
	assert.Equal(t, []string{"kept.jpg"}, s.Names())
}
