package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

func TestParseSweepConfig(t *testing.T) {
	cfg, err := ParseSweepConfig([]byte(`
folder: https://drive.google.com/drive/folders/abc123
cutoff: "2023-06"
min_size: 10485760
owner: someone@example.com
recursive: true
`))

	require.NoError(t, err)
	assert.Equal(t, "https://drive.google.com/drive/folders/abc123", cfg.FolderRef)
	require.NotNil(t, cfg.CutoffYear)
	require.NotNil(t, cfg.CutoffMonth)
	assert.Equal(t, 2023, *cfg.CutoffYear)
	assert.Equal(t, 6, *cfg.CutoffMonth)
	require.NotNil(t, cfg.MinSizeBytes)
	assert.Equal(t, int64(10485760), *cfg.MinSizeBytes)
	assert.Equal(t, "someone@example.com", cfg.OwnerEmail)
	assert.True(t, cfg.Recursive)
}

func TestParseSweepConfig_Optional(t *testing.T) {
	cfg, err := ParseSweepConfig([]byte("folder: photos\n"))

	require.NoError(t, err)
	assert.Nil(t, cfg.CutoffYear)
	assert.Nil(t, cfg.MinSizeBytes)
	assert.Empty(t, cfg.OwnerEmail)
}

func TestParseSweepConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing folder", "cutoff: \"2023\"\n"},
		{"bad cutoff", "folder: photos\ncutoff: June\n"},
		{"bad month", "folder: photos\ncutoff: \"2023-13\"\n"},
		{"negative size", "folder: photos\nmin_size: -1\n"},
		{"not yaml", "folder: [unclosed\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSweepConfig([]byte(tt.doc))
			assert.ErrorIs(t, err, model.ErrConfiguration)
		})
	}
}

func TestSweepConfigFile_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("folder: photos\ncutoff: \"2022\"\n"), 0o600))

	cfg, err := NewSweepConfigFile(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "photos", cfg.FolderRef)

	_, err = NewSweepConfigFile(filepath.Join(dir, "missing.yaml")).Load(context.Background())
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
