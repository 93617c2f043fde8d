package service

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func fileAt(id string, modified time.Time, size int64, owner model.Owner) model.FileMetadata {
	return model.FileMetadata{ID: id, Name: id + ".txt", SizeBytes: size, LastModified: modified, Owner: owner}
}

func TestFileMatcher_Cutoff(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	cfg := model.SweepConfig{FolderRef: "root", CutoffYear: intPtr(2023), CutoffMonth: intPtr(6)}
	matcher := NewFileMatcher(cfg, tokyo)
	owner := model.ResolvedOwner("a@example.com")

	tests := []struct {
		name     string
		modified time.Time
		want     bool
	}{
		{"earlier year", time.Date(2022, 12, 31, 0, 0, 0, 0, tokyo), true},
		{"cutoff month first day", time.Date(2023, 6, 1, 0, 0, 0, 0, tokyo), true},
		{"cutoff month last second", time.Date(2023, 6, 30, 23, 59, 59, 0, tokyo), true},
		{"month after cutoff", time.Date(2023, 7, 1, 0, 0, 0, 0, tokyo), false},
		{"later year, earlier month", time.Date(2024, 1, 1, 0, 0, 0, 0, tokyo), false},
		{"utc june is tokyo july", time.Date(2023, 6, 30, 16, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matcher.Matches(fileAt("f", tt.modified, 1, owner)))
		})
	}
}

func TestFileMatcher_YearOnlyCutoffCoversWholeYear(t *testing.T) {
	matcher := NewFileMatcher(model.SweepConfig{FolderRef: "root", CutoffYear: intPtr(2023)}, time.UTC)
	owner := model.UnresolvedOwner()

	assert.True(t, matcher.Matches(fileAt("dec", time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC), 0, owner)))
	assert.False(t, matcher.Matches(fileAt("jan", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 0, owner)))
}

func TestFileMatcher_MinSize(t *testing.T) {
	matcher := NewFileMatcher(model.SweepConfig{FolderRef: "root", MinSizeBytes: int64Ptr(1024)}, time.UTC)
	now := time.Now()
	owner := model.ResolvedOwner("a@example.com")

	assert.False(t, matcher.Matches(fileAt("small", now, 1023, owner)))
	assert.True(t, matcher.Matches(fileAt("exact", now, 1024, owner)))
	assert.True(t, matcher.Matches(fileAt("large", now, 1<<30, owner)))
}

func TestFileMatcher_Owner(t *testing.T) {
	now := time.Now()

	t.Run("owner filter requires a resolved match", func(t *testing.T) {
		matcher := NewFileMatcher(model.SweepConfig{FolderRef: "root", OwnerEmail: "a@example.com"}, time.UTC)

		assert.True(t, matcher.Matches(fileAt("mine", now, 1, model.ResolvedOwner("a@example.com"))))
		assert.False(t, matcher.Matches(fileAt("theirs", now, 1, model.ResolvedOwner("b@example.com"))))
		assert.False(t, matcher.Matches(fileAt("shared", now, 1, model.UnresolvedOwner())))
	})

	t.Run("no owner filter accepts unresolved owners", func(t *testing.T) {
		matcher := NewFileMatcher(model.SweepConfig{FolderRef: "root"}, time.UTC)

		assert.True(t, matcher.Matches(fileAt("shared", now, 1, model.UnresolvedOwner())))
	})
}

func TestFileMatcher_AllPredicatesMustHold(t *testing.T) {
	cfg := model.SweepConfig{
		FolderRef:    "root",
		CutoffYear:   intPtr(2023),
		CutoffMonth:  intPtr(1),
		MinSizeBytes: int64Ptr(10),
		OwnerEmail:   "a@example.com",
	}
	matcher := NewFileMatcher(cfg, time.UTC)
	old := time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)
	owner := model.ResolvedOwner("a@example.com")

	assert.True(t, matcher.Matches(fileAt("all", old, 10, owner)))
	assert.False(t, matcher.Matches(fileAt("too new", time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), 10, owner)))
	assert.False(t, matcher.Matches(fileAt("too small", old, 9, owner)))
	assert.False(t, matcher.Matches(fileAt("wrong owner", old, 10, model.ResolvedOwner("b@example.com"))))
}
