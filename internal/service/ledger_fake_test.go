package service

import (
	"context"
	"slices"
	"sync"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// memLedger is an in-memory ledger that records every append call.
type memLedger struct {
	mu      sync.Mutex
	rows    []model.LedgerRow
	appends []int

	appendErr    error
	setRemovedFn func(rowPosition int64) error
}

func newMemLedger(rows ...model.LedgerRow) *memLedger {
	l := &memLedger{}
	for _, row := range rows {
		row.RowPosition = int64(len(l.rows) + 1)
		l.rows = append(l.rows, row)
	}
	return l
}

func (l *memLedger) ListAllIDs(_ context.Context) (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make(map[string]struct{}, len(l.rows))
	for _, row := range l.rows {
		ids[row.FileID] = struct{}{}
	}
	return ids, nil
}

func (l *memLedger) AppendRows(_ context.Context, rows []model.LedgerRow) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.appendErr != nil {
		return l.appendErr
	}
	l.appends = append(l.appends, len(rows))
	for _, row := range rows {
		row.RowPosition = int64(len(l.rows) + 1)
		l.rows = append(l.rows, row)
	}
	return nil
}

func (l *memLedger) ListLiveRows(_ context.Context) ([]model.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var live []model.LedgerRow
	for _, row := range l.rows {
		if !row.Removed() {
			live = append(live, row)
		}
	}
	return live, nil
}

func (l *memLedger) SetRemovedAt(_ context.Context, rowPosition int64, removedAt string) error {
	if l.setRemovedFn != nil {
		if err := l.setRemovedFn(rowPosition); err != nil {
			return err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	row, err := l.rowLocked(rowPosition)
	if err != nil {
		return err
	}
	if row.Removed() {
		return model.ErrRowAlreadyRemoved
	}
	row.RemovedAt = removedAt
	return nil
}

func (l *memLedger) List(_ context.Context, query model.LedgerQuery) ([]model.LedgerRow, model.Meta, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := slices.DeleteFunc(slices.Clone(l.rows), func(row model.LedgerRow) bool {
		switch query.Filter {
		case model.LedgerFilterLive:
			return row.Removed()
		case model.LedgerFilterRemoved:
			return !row.Removed()
		case model.LedgerFilterExempt:
			return !row.Exempt()
		}
		return false
	})

	start := min((query.Page-1)*query.Limit, len(filtered))
	end := min(start+query.Limit, len(filtered))
	return filtered[start:end], model.NewMeta(query.Page, query.Limit, len(filtered)), nil
}

func (l *memLedger) FindByPosition(_ context.Context, rowPosition int64) (model.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, err := l.rowLocked(rowPosition)
	if err != nil {
		return model.LedgerRow{}, err
	}
	return *row, nil
}

func (l *memLedger) SetExemption(_ context.Context, rowPosition int64, note string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	row, err := l.rowLocked(rowPosition)
	if err != nil {
		return err
	}
	if row.Removed() {
		return model.ErrRowAlreadyRemoved
	}
	row.ExemptionNote = note
	return nil
}

func (l *memLedger) Each(_ context.Context, fn func(model.LedgerRow) error) error {
	l.mu.Lock()
	rows := slices.Clone(l.rows)
	l.mu.Unlock()

	for _, row := range rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (l *memLedger) snapshot() []model.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.rows)
}

func (l *memLedger) rowLocked(rowPosition int64) (*model.LedgerRow, error) {
	if rowPosition < 1 || int(rowPosition) > len(l.rows) {
		return nil, model.ErrRowNotFound
	}
	return &l.rows[rowPosition-1], nil
}
