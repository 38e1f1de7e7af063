package repository_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digestmail/digestmail/internal/repository"
)

func TestImageRepository(t *testing.T) {
	t.Parallel()

	t.Run("stores under the base name", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		repo := repository.NewImageRepository(filepath.Join(dir, "images"))

		path, err := repo.Store("../../etc/banner.png", strings.NewReader("png"))
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, "images", "banner.png"), path)

		data, err := repo.ReadImage(path)
		require.NoError(t, err)
		require.Equal(t, []byte("png"), data)
	})

	t.Run("same name replaces the previous upload", func(t *testing.T) {
		t.Parallel()

		repo := repository.NewImageRepository(t.TempDir())
		first, err := repo.Store("a.png", strings.NewReader("one"))
		require.NoError(t, err)
		second, err := repo.Store("a.png", strings.NewReader("two"))
		require.NoError(t, err)
		require.Equal(t, first, second)

		data, err := repo.ReadImage(second)
		require.NoError(t, err)
		require.Equal(t, []byte("two"), data)
	})

	t.Run("rejects empty names", func(t *testing.T) {
		t.Parallel()

		_, err := repository.NewImageRepository(t.TempDir()).Store("", strings.NewReader("x"))
		require.ErrorIs(t, err, repository.ErrInvalidInput)
	})

	t.Run("missing file is not found", func(t *testing.T) {
		t.Parallel()

		_, err := repository.NewImageRepository(t.TempDir()).ReadImage(filepath.Join(t.TempDir(), "nope.png"))
		require.ErrorIs(t, err, repository.ErrNotFound)
	})
}
