package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// SQLiteLedger keeps the ledger in an SQLite table for single-host
// deployments without PostgreSQL.
type SQLiteLedger struct {
	db  *sql.DB
	sql ledgerSQL
}

// NewSQLiteLedger creates the ledger table when it does not exist.
func NewSQLiteLedger(ctx context.Context, db *sql.DB, schema model.LedgerSchema) (*SQLiteLedger, error) {
	l := &SQLiteLedger{db: db, sql: newLedgerSQL(schema, quoteIdent)}

	if _, err := db.ExecContext(ctx, l.sql.createTable("INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER")); err != nil {
		return nil, fmt.Errorf("create ledger table: %w", err)
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
		quoteIdent("idx_"+schema.Table+"_file_id"), l.sql.table, l.sql.fileID))
	if err != nil {
		return nil, fmt.Errorf("create ledger index: %w", err)
	}

	return l, nil
}

func (l *SQLiteLedger) ListAllIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := l.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s`, l.sql.fileID, l.sql.table))
	if err != nil {
		return nil, fmt.Errorf("query ledger ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ledger id: %w", err)
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

// AppendRows inserts rows in one transaction.
func (l *SQLiteLedger) AppendRows(ctx context.Context, rows []model.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger append: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(l.sql.columns)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		l.sql.table, l.sql.insertList(), placeholders))
	if err != nil {
		return fmt.Errorf("prepare ledger append: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, ledgerValues(row)...); err != nil {
			return fmt.Errorf("insert ledger row %s: %w", row.FileID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger append: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) ListLiveRows(ctx context.Context) ([]model.LedgerRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY %s`,
		l.sql.selectList(), l.sql.table, l.sql.filterClause(model.LedgerFilterLive), rowPositionColumn)
	return l.queryRows(ctx, query)
}

func (l *SQLiteLedger) SetRemovedAt(ctx context.Context, rowPosition int64, removedAt string) error {
	result, err := l.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ? AND %s = ''`,
			l.sql.table, l.sql.deletedAt, rowPositionColumn, l.sql.deletedAt),
		removedAt, rowPosition)
	if err != nil {
		return fmt.Errorf("set removal timestamp: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		return nil
	}

	row, err := l.FindByPosition(ctx, rowPosition)
	if err != nil {
		return err
	}
	if row.Removed() {
		return model.ErrRowAlreadyRemoved
	}
	return fmt.Errorf("set removal timestamp: row %d not updated", rowPosition)
}

func (l *SQLiteLedger) List(ctx context.Context, query model.LedgerQuery) ([]model.LedgerRow, model.Meta, error) {
	page, limit := model.NormalizePage(query.Page, query.Limit, 100, 1000)
	where := l.sql.filterClause(query.Filter)

	var total int
	if err := l.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, l.sql.table, where)).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count ledger rows: %w", err)
	}

	items, err := l.queryRows(ctx,
		fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY %s LIMIT ? OFFSET ?`,
			l.sql.selectList(), l.sql.table, where, rowPositionColumn),
		limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, err
	}

	return items, model.NewMeta(page, limit, total), nil
}

func (l *SQLiteLedger) FindByPosition(ctx context.Context, rowPosition int64) (model.LedgerRow, error) {
	row, err := scanLedgerRow(l.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, l.sql.selectList(), l.sql.table, rowPositionColumn),
		rowPosition))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LedgerRow{}, model.ErrRowNotFound
	}
	if err != nil {
		return model.LedgerRow{}, fmt.Errorf("find ledger row: %w", err)
	}
	return row, nil
}

func (l *SQLiteLedger) SetExemption(ctx context.Context, rowPosition int64, note string) error {
	result, err := l.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ? AND %s = ''`,
			l.sql.table, l.sql.exemption, rowPositionColumn, l.sql.deletedAt),
		note, rowPosition)
	if err != nil {
		return fmt.Errorf("set exemption note: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		return nil
	}

	if _, err := l.FindByPosition(ctx, rowPosition); err != nil {
		return err
	}
	return model.ErrRowAlreadyRemoved
}

func (l *SQLiteLedger) Each(ctx context.Context, fn func(model.LedgerRow) error) error {
	rows, err := l.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`, l.sql.selectList(), l.sql.table, rowPositionColumn))
	if err != nil {
		return fmt.Errorf("query ledger rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanLedgerRow(rows)
		if err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
		if err := fn(row); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (l *SQLiteLedger) queryRows(ctx context.Context, query string, args ...any) ([]model.LedgerRow, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger rows: %w", err)
	}
	defer rows.Close()

	items := make([]model.LedgerRow, 0)
	for rows.Next() {
		row, err := scanLedgerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		items = append(items, row)
	}

	return items, rows.Err()
}
