package model

// TimestampLayout is the ledger's timestamp format (yyyy-MM-dd HH:mm:ss).
const TimestampLayout = "2006-01-02 15:04:05"

type LedgerRow struct {
	RowPosition   int64  `json:"row_position"`
	FileID        string `json:"file_id"`
	FileName      string `json:"file_name"`
	FileURL       string `json:"file_url"`
	OwnerEmail    string `json:"owner"`
	LastModified  string `json:"last_updated"`
	FileSize      int64  `json:"size"`
	ExemptionNote string `json:"skip_comment"`
	RemovedAt     string `json:"deleted_at"`
}

func (r LedgerRow) Exempt() bool {
	return r.ExemptionNote != ""
}

func (r LedgerRow) Removed() bool {
	return r.RemovedAt != ""
}

// LedgerColumn names one ledger column in storage and in exports.
type LedgerColumn struct {
	Name   string
	Header string
}

// LedgerSchema describes where the ledger lives and its column layout. The
// column order is fixed: file id, name, url, owner, last updated, size,
// exemption note, removal timestamp.
type LedgerSchema struct {
	Table         string
	FileID        LedgerColumn
	FileName      LedgerColumn
	FileURL       LedgerColumn
	Owner         LedgerColumn
	LastUpdated   LedgerColumn
	Size          LedgerColumn
	ExemptionNote LedgerColumn
	DeletedAt     LedgerColumn
}

func DefaultLedgerSchema() LedgerSchema {
	return LedgerSchema{
		Table:         "file_log",
		FileID:        LedgerColumn{Name: "file_id", Header: "File ID"},
		FileName:      LedgerColumn{Name: "file_name", Header: "File Name"},
		FileURL:       LedgerColumn{Name: "file_url", Header: "File URL"},
		Owner:         LedgerColumn{Name: "owner", Header: "Owner"},
		LastUpdated:   LedgerColumn{Name: "last_updated", Header: "Last Updated"},
		Size:          LedgerColumn{Name: "size", Header: "Size"},
		ExemptionNote: LedgerColumn{Name: "skip_comment", Header: "Skip/Comment"},
		DeletedAt:     LedgerColumn{Name: "deleted_at", Header: "Deleted At"},
	}
}

// Columns returns the data columns in their fixed order.
func (s LedgerSchema) Columns() []LedgerColumn {
	return []LedgerColumn{s.FileID, s.FileName, s.FileURL, s.Owner, s.LastUpdated, s.Size, s.ExemptionNote, s.DeletedAt}
}

func (s LedgerSchema) ColumnNames() []string {
	columns := s.Columns()
	names := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.Name
	}
	return names
}

func (s LedgerSchema) Headers() []string {
	columns := s.Columns()
	headers := make([]string, len(columns))
	for i, column := range columns {
		headers[i] = column.Header
	}
	return headers
}

// LedgerFilter selects rows for operator listings.
type LedgerFilter string

const (
	LedgerFilterAll     LedgerFilter = ""
	LedgerFilterLive    LedgerFilter = "live"
	LedgerFilterRemoved LedgerFilter = "removed"
	LedgerFilterExempt  LedgerFilter = "exempt"
)

type LedgerQuery struct {
	Filter LedgerFilter
	Page   int
	Limit  int
}

type LedgerListData struct {
	Items []LedgerRow `json:"items"`
}

type ExemptionRequest struct {
	Note string `json:"note"`
}

// ConfigLocation points at the row holding the sweep configuration.
type ConfigLocation struct {
	Table string
	Name  string
}
