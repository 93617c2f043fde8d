package service

import (
	"context"
	"iter"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// FileSource is the storage provider swept by the engines.
type FileSource interface {
	// Enumerate resolves folderRef and returns a lazy, single-pass sequence of
	// the files under it. Resolution failures are returned before any file is
	// produced, as a *model.ReferenceResolutionError.
	Enumerate(ctx context.Context, folderRef string, opts model.EnumerateOptions) (iter.Seq2[model.FileMetadata, error], error)
	GetByID(ctx context.Context, fileID string) (model.FileMetadata, error)
	Trash(ctx context.Context, fileID string) error
	// ViewURL derives the canonical link of a file from its id.
	ViewURL(fileID string) string
}

// Ledger is the durable record of discovered files.
type Ledger interface {
	ListAllIDs(ctx context.Context) (map[string]struct{}, error)
	// AppendRows writes all rows in a single durable write.
	AppendRows(ctx context.Context, rows []model.LedgerRow) error
	ListLiveRows(ctx context.Context) ([]model.LedgerRow, error)
	// SetRemovedAt stamps a row that has no removal timestamp yet. It returns
	// model.ErrRowAlreadyRemoved when the row was stamped before.
	SetRemovedAt(ctx context.Context, rowPosition int64, removedAt string) error
}

// LedgerAdmin is the operator side of the ledger: listings and exemption
// notes. The engines never use it.
type LedgerAdmin interface {
	List(ctx context.Context, query model.LedgerQuery) ([]model.LedgerRow, model.Meta, error)
	FindByPosition(ctx context.Context, rowPosition int64) (model.LedgerRow, error)
	SetExemption(ctx context.Context, rowPosition int64, note string) error
	Each(ctx context.Context, fn func(model.LedgerRow) error) error
}

type ConfigProvider interface {
	Load(ctx context.Context) (model.SweepConfig, error)
}

// RunStore persists run history.
type RunStore interface {
	Create(ctx context.Context, run model.RunRecord) error
	Update(ctx context.Context, run model.RunRecord) error
	FindByID(ctx context.Context, runID string) (model.RunRecord, error)
	List(ctx context.Context, page int, limit int) ([]model.RunRecord, model.Meta, error)
}

// AuditStore persists audit entries.
type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}
