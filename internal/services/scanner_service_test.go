package services

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/observability"
)

func TestScannerService_Discover(t *testing.T) {
	ctx := context.Background()
	svc := NewScannerService(observability.NewNopLogger())

	t.Run("returns every regular file recursively", func(t *testing.T) {
		root := t.TempDir()
		want := []string{
			writeTestFile(t, filepath.Join(root, "top.jpg"), []byte("a")),
			writeTestFile(t, filepath.Join(root, "vacation", "img1.jpg"), []byte("b")),
			writeTestFile(t, filepath.Join(root, "vacation", "notes.txt"), []byte("c")),
			writeTestFile(t, filepath.Join(root, "vacation", "day2", "IMG_2.JPG"), []byte("d")),
			writeTestFile(t, filepath.Join(root, ".hidden", "x.jpg"), []byte("e")),
		}
		require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

		files, err := svc.Discover(ctx, root)
		require.NoError(t, err)

		sort.Strings(files)
		sort.Strings(want)
		assert.Equal(t, want, files)
		for _, f := range files {
			assert.True(t, filepath.IsAbs(f))
		}
	})

	t.Run("empty tree", func(t *testing.T) {
		files, err := svc.Discover(ctx, t.TempDir())
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("missing root", func(t *testing.T) {
		_, err := svc.Discover(ctx, filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})

	t.Run("root is a file", func(t *testing.T) {
		path := writeTestFile(t, filepath.Join(t.TempDir(), "file.jpg"), []byte("x"))

		_, err := svc.Discover(ctx, path)
		assert.ErrorIs(t, err, models.ErrNotADirectory)
	})

	t.Run("cancelled context", func(t *testing.T) {
		root := t.TempDir()
		writeTestFile(t, filepath.Join(root, "a.jpg"), []byte("a"))
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := svc.Discover(cancelled, root)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
