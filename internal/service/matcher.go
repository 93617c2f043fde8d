package service

import (
	"time"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// FileMatcher evaluates the retention criteria of a sweep config against file
// metadata. Every enabled predicate must hold; disabled ones always pass.
type FileMatcher struct {
	cfg *model.SweepConfig
	loc *time.Location
}

// NewFileMatcher returns a matcher that reads calendar months in loc.
func NewFileMatcher(cfg model.SweepConfig, loc *time.Location) *FileMatcher {
	if loc == nil {
		loc = time.UTC
	}
	return &FileMatcher{cfg: &cfg, loc: loc}
}

func (m *FileMatcher) Matches(file model.FileMetadata) bool {
	return m.matchesCutoff(file) && m.matchesSize(file) && m.matchesOwner(file)
}

// matchesCutoff compares (year, month) only; day and time of day are ignored.
func (m *FileMatcher) matchesCutoff(file model.FileMetadata) bool {
	cutoffYear, cutoffMonth, ok := m.cfg.Cutoff()
	if !ok {
		return true
	}

	modified := file.LastModified.In(m.loc)
	year, month := modified.Year(), int(modified.Month())
	if year != cutoffYear {
		return year < cutoffYear
	}
	return month <= cutoffMonth
}

func (m *FileMatcher) matchesSize(file model.FileMetadata) bool {
	if m.cfg.MinSizeBytes == nil {
		return true
	}
	return file.SizeBytes >= *m.cfg.MinSizeBytes
}

// matchesOwner excludes files whose owner could not be resolved.
func (m *FileMatcher) matchesOwner(file model.FileMetadata) bool {
	if m.cfg.OwnerEmail == "" {
		return true
	}
	email, resolved := file.Owner.Email()
	return resolved && email == m.cfg.OwnerEmail
}
