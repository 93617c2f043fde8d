package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SweepConfig holds the retention criteria of one sweep. A nil pointer or an
// empty string disables the corresponding predicate.
type SweepConfig struct {
	FolderRef    string `json:"folder_ref"`
	CutoffYear   *int   `json:"cutoff_year,omitempty"`
	CutoffMonth  *int   `json:"cutoff_month,omitempty"`
	MinSizeBytes *int64 `json:"min_size_bytes,omitempty"`
	OwnerEmail   string `json:"owner_email,omitempty"`
	Recursive    bool   `json:"recursive,omitempty"`
}

func (c SweepConfig) Validate() error {
	if c.FolderRef == "" {
		return NewConfigurationError("folder", "target folder is not set")
	}

	if c.CutoffMonth != nil {
		if c.CutoffYear == nil {
			return NewConfigurationError("cutoff", "cutoff month requires a cutoff year")
		}
		if *c.CutoffMonth < 1 || *c.CutoffMonth > 12 {
			return NewConfigurationError("cutoff", fmt.Sprintf("cutoff month %d is out of range", *c.CutoffMonth))
		}
	}

	if c.MinSizeBytes != nil && *c.MinSizeBytes < 0 {
		return NewConfigurationError("min_size", "minimum size cannot be negative")
	}

	return nil
}

// Cutoff returns the inclusive (year, month) bound. A year without a month
// covers the whole year.
func (c SweepConfig) Cutoff() (year int, month int, ok bool) {
	if c.CutoffYear == nil {
		return 0, 0, false
	}

	month = 12
	if c.CutoffMonth != nil {
		month = *c.CutoffMonth
	}

	return *c.CutoffYear, month, true
}

// ParseCutoff reads a cutoff written as "YYYY-MM" or "YYYY". An empty value
// disables the cutoff.
func ParseCutoff(raw string) (year *int, month *int, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, nil
	}

	yearPart, monthPart, hasMonth := strings.Cut(raw, "-")
	y, err := strconv.Atoi(yearPart)
	if err != nil || len(yearPart) != 4 {
		return nil, nil, NewConfigurationError("cutoff", fmt.Sprintf("%q is not YYYY-MM or YYYY", raw))
	}
	if !hasMonth {
		return &y, nil, nil
	}

	m, err := strconv.Atoi(monthPart)
	if err != nil || m < 1 || m > 12 {
		return nil, nil, NewConfigurationError("cutoff", fmt.Sprintf("%q has an invalid month", raw))
	}
	return &y, &m, nil
}

const UnknownOwner = "unknown"

// Owner is the result of resolving a file's owner. Shared or team-owned files
// commonly have no resolvable owner; that is data, not an error.
type Owner struct {
	email    string
	resolved bool
}

func ResolvedOwner(email string) Owner {
	return Owner{email: email, resolved: true}
}

func UnresolvedOwner() Owner {
	return Owner{}
}

func (o Owner) Email() (string, bool) {
	return o.email, o.resolved
}

func (o Owner) String() string {
	if !o.resolved {
		return UnknownOwner
	}
	return o.email
}

func (o Owner) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// FileMetadata is the read-only view of a file exposed by a file source.
type FileMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified"`
	Owner        Owner     `json:"owner"`
}

type DiscoverResult struct {
	Scanned    int  `json:"scanned"`
	Duplicates int  `json:"duplicates"`
	Matched    int  `json:"matched"`
	Written    int  `json:"written"`
	Flushes    int  `json:"flushes"`
	CapReached bool `json:"cap_reached"`
}

type TrashFailure struct {
	RowPosition int64  `json:"row_position"`
	FileID      string `json:"file_id"`
	Reason      string `json:"reason"`
}

type ReconcileResult struct {
	Live       int            `json:"live"`
	Exempt     int            `json:"exempt"`
	Eligible   int            `json:"eligible"`
	Attempted  int            `json:"attempted"`
	Deleted    int            `json:"deleted"`
	Failures   []TrashFailure `json:"failures,omitempty"`
	CapReached bool           `json:"cap_reached"`
}

type EnumerateOptions struct {
	Recursive bool
}
