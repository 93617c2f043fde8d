package storage

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

func writeFile(t *testing.T, root string, rel string, content string, modified time.Time) {
	t.Helper()

	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(abs, modified, modified))
}

func newTestLocalSource(t *testing.T) (*LocalSource, string, string) {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "data")
	trash := filepath.Join(base, "trash")
	require.NoError(t, os.MkdirAll(root, 0o755))

	source, err := NewLocalSource(root, trash, "example.com")
	require.NoError(t, err)
	return source, root, trash
}

func collect(t *testing.T, source *LocalSource, ref string, recursive bool) []model.FileMetadata {
	t.Helper()

	files, err := source.Enumerate(context.Background(), ref, model.EnumerateOptions{Recursive: recursive})
	require.NoError(t, err)

	var out []model.FileMetadata
	for file, err := range files {
		require.NoError(t, err)
		out = append(out, file)
	}
	slices.SortFunc(out, func(a, b model.FileMetadata) int { return strings.Compare(a.ID, b.ID) })
	return out
}

func TestLocalSource_Enumerate(t *testing.T) {
	source, root, _ := newTestLocalSource(t)
	modified := time.Date(2021, 4, 5, 6, 7, 8, 0, time.UTC)
	writeFile(t, root, "photos/a.jpg", "aaaa", modified)
	writeFile(t, root, "photos/b.jpg", "bb", modified)
	writeFile(t, root, "photos/2020/c.jpg", "c", modified)

	t.Run("direct children only", func(t *testing.T) {
		files := collect(t, source, "photos", false)

		require.Len(t, files, 2)
		assert.Equal(t, "photos/a.jpg", files[0].ID)
		assert.Equal(t, "a.jpg", files[0].Name)
		assert.Equal(t, int64(4), files[0].SizeBytes)
		assert.True(t, modified.Equal(files[0].LastModified))
	})

	t.Run("recursive", func(t *testing.T) {
		files := collect(t, source, "/photos/", true)

		require.Len(t, files, 3)
		assert.Equal(t, "photos/2020/c.jpg", files[0].ID)
	})

	t.Run("unknown folder", func(t *testing.T) {
		_, err := source.Enumerate(context.Background(), "videos", model.EnumerateOptions{})
		assert.ErrorIs(t, err, model.ErrReferenceResolution)
	})

	t.Run("file is not a folder", func(t *testing.T) {
		_, err := source.Enumerate(context.Background(), "photos/a.jpg", model.EnumerateOptions{})
		assert.ErrorIs(t, err, model.ErrReferenceResolution)
	})

	t.Run("escaping the root", func(t *testing.T) {
		_, err := source.Enumerate(context.Background(), "../trash", model.EnumerateOptions{})
		assert.ErrorIs(t, err, model.ErrReferenceResolution)
	})
}

func TestLocalSource_OwnerUsesDomain(t *testing.T) {
	source, root, _ := newTestLocalSource(t)
	writeFile(t, root, "a.txt", "a", time.Now())

	files := collect(t, source, "", false)

	require.Len(t, files, 1)
	if email, ok := files[0].Owner.Email(); ok {
		assert.True(t, strings.HasSuffix(email, "@example.com"), email)
	} else {
		assert.Equal(t, model.UnknownOwner, files[0].Owner.String())
	}
}

func TestLocalSource_Trash(t *testing.T) {
	source, root, trash := newTestLocalSource(t)
	writeFile(t, root, "old/report.pdf", "pdf", time.Now())
	ctx := context.Background()

	require.NoError(t, source.Trash(ctx, "old/report.pdf"))

	_, err := os.Stat(filepath.Join(root, "old", "report.pdf"))
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(trash)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), "_report.pdf"))

	assert.ErrorIs(t, source.Trash(ctx, "old/report.pdf"), model.ErrFileNotFound)
	assert.ErrorIs(t, source.Trash(ctx, ""), model.ErrFileNotFound)
	assert.Error(t, source.Trash(ctx, "old"))
}

func TestLocalSource_GetByID(t *testing.T) {
	source, root, _ := newTestLocalSource(t)
	writeFile(t, root, "a.txt", "hello", time.Now())
	ctx := context.Background()

	file, err := source.GetByID(ctx, "a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), file.SizeBytes)

	_, err = source.GetByID(ctx, "missing.txt")
	assert.ErrorIs(t, err, model.ErrFileNotFound)
}

func TestLocalSource_ViewURL(t *testing.T) {
	source, root, _ := newTestLocalSource(t)

	assert.Equal(t, "file://"+filepath.ToSlash(filepath.Join(root, "a.txt")), source.ViewURL("a.txt"))
	assert.Empty(t, source.ViewURL("../a.txt"))
}

func TestNewLocalSource_RejectsTrashInsideRoot(t *testing.T) {
	root := t.TempDir()

	_, err := NewLocalSource(root, filepath.Join(root, ".trash"), "")
	assert.ErrorContains(t, err, "outside the storage root")

	_, err = NewLocalSource(filepath.Join(root, "missing"), t.TempDir(), "")
	assert.Error(t, err)
}
