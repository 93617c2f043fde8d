package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathValidatorResolve(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	validator, err := NewPathValidator(root)
	require.NoError(t, err)

	t.Run("root reference resolves to root", func(t *testing.T) {
		for _, ref := range []string{"", "/", "."} {
			resolved, rel, resolveErr := validator.Resolve(ref)
			require.NoError(t, resolveErr)
			require.Equal(t, validator.RootAbs(), resolved)
			require.Empty(t, rel)
		}
	})

	t.Run("nested reference resolves inside root", func(t *testing.T) {
		resolved, rel, resolveErr := validator.Resolve("/documents/report.txt")
		require.NoError(t, resolveErr)
		require.Equal(t, filepath.Join(validator.RootAbs(), "documents", "report.txt"), resolved)
		require.Equal(t, "documents/report.txt", rel)
	})

	t.Run("backslashes are normalized", func(t *testing.T) {
		_, rel, resolveErr := validator.Resolve(`documents\photo.jpg`)
		require.NoError(t, resolveErr)
		require.Equal(t, "documents/photo.jpg", rel)
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		_, _, resolveErr := validator.Resolve("/documents/../secrets.txt")
		require.ErrorIs(t, resolveErr, errPathEscapes)
	})

	t.Run("control characters are rejected", func(t *testing.T) {
		_, _, resolveErr := validator.Resolve("documents\nreport.txt")
		require.ErrorIs(t, resolveErr, errInvalidPath)

		_, _, resolveErr = validator.Resolve("documents\x00/report.txt")
		require.ErrorIs(t, resolveErr, errInvalidPath)
	})

	t.Run("rel round-trips", func(t *testing.T) {
		rel, relErr := validator.Rel(filepath.Join(validator.RootAbs(), "a", "b.txt"))
		require.NoError(t, relErr)
		require.Equal(t, "a/b.txt", rel)

		_, relErr = validator.Rel(filepath.Dir(validator.RootAbs()))
		require.Error(t, relErr)
	})

	t.Run("root prefix is not containment", func(t *testing.T) {
		require.False(t, isWithinRoot(`/tmp/root`, `/tmp/rootless/file.txt`))
		require.True(t, isWithinRoot(`/tmp/root`, `/tmp/root/folder/file.txt`))
	})
}
