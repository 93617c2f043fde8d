package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// LedgerRepository keeps the ledger in a PostgreSQL table. Row positions are
// assigned by a sequence, so append order is ledger order.
type LedgerRepository struct {
	pool   *pgxpool.Pool
	schema model.LedgerSchema
	sql    ledgerSQL
}

func NewLedgerRepository(pool *pgxpool.Pool, schema model.LedgerSchema) *LedgerRepository {
	return &LedgerRepository{
		pool:   pool,
		schema: schema,
		sql: newLedgerSQL(schema, func(name string) string {
			return pgx.Identifier{name}.Sanitize()
		}),
	}
}

func (r *LedgerRepository) EnsureTable(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, r.sql.createTable("BIGSERIAL PRIMARY KEY", "BIGINT")); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	_, err := r.pool.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
		pgx.Identifier{"idx_" + r.schema.Table + "_file_id"}.Sanitize(), r.sql.table, r.sql.fileID))
	if err != nil {
		return fmt.Errorf("create ledger index: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListAllIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s`, r.sql.fileID, r.sql.table))
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

// AppendRows copies rows in one COPY statement; either all rows land or none.
func (r *LedgerRepository) AppendRows(ctx context.Context, rows []model.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}

	copied, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{r.schema.Table},
		r.schema.ColumnNames(),
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return ledgerValues(rows[i]), nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy ledger rows: %w", err)
	}
	if copied != int64(len(rows)) {
		return fmt.Errorf("copy ledger rows: wrote %d of %d", copied, len(rows))
	}
	return nil
}

func (r *LedgerRepository) ListLiveRows(ctx context.Context) ([]model.LedgerRow, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY %s`,
		r.sql.selectList(), r.sql.table, r.sql.filterClause(model.LedgerFilterLive), rowPositionColumn)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query live ledger rows: %w", err)
	}
	defer rows.Close()

	live := make([]model.LedgerRow, 0)
	for rows.Next() {
		row, err := scanLedgerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		live = append(live, row)
	}

	return live, rows.Err()
}

func (r *LedgerRepository) SetRemovedAt(ctx context.Context, rowPosition int64, removedAt string) error {
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1 AND %s = ''`,
			r.sql.table, r.sql.deletedAt, rowPositionColumn, r.sql.deletedAt),
		rowPosition, removedAt)
	if err != nil {
		return fmt.Errorf("set removal timestamp: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	row, err := r.FindByPosition(ctx, rowPosition)
	if err != nil {
		return err
	}
	if row.Removed() {
		return model.ErrRowAlreadyRemoved
	}
	return fmt.Errorf("set removal timestamp: row %d not updated", rowPosition)
}

func (r *LedgerRepository) List(ctx context.Context, query model.LedgerQuery) ([]model.LedgerRow, model.Meta, error) {
	page, limit := model.NormalizePage(query.Page, query.Limit, 100, 1000)
	where := r.sql.filterClause(query.Filter)

	var total int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, r.sql.table, where)).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count ledger rows: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY %s LIMIT $1 OFFSET $2`,
			r.sql.selectList(), r.sql.table, where, rowPositionColumn),
		limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query ledger rows: %w", err)
	}
	defer rows.Close()

	items := make([]model.LedgerRow, 0, limit)
	for rows.Next() {
		row, err := scanLedgerRow(rows)
		if err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan ledger row: %w", err)
		}
		items = append(items, row)
	}

	return items, model.NewMeta(page, limit, total), rows.Err()
}

func (r *LedgerRepository) FindByPosition(ctx context.Context, rowPosition int64) (model.LedgerRow, error) {
	row, err := scanLedgerRow(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, r.sql.selectList(), r.sql.table, rowPositionColumn),
		rowPosition))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.LedgerRow{}, model.ErrRowNotFound
	}
	if err != nil {
		return model.LedgerRow{}, fmt.Errorf("find ledger row: %w", err)
	}
	return row, nil
}

func (r *LedgerRepository) SetExemption(ctx context.Context, rowPosition int64, note string) error {
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1 AND %s = ''`,
			r.sql.table, r.sql.exemption, rowPositionColumn, r.sql.deletedAt),
		rowPosition, note)
	if err != nil {
		return fmt.Errorf("set exemption note: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.FindByPosition(ctx, rowPosition); err != nil {
		return err
	}
	return model.ErrRowAlreadyRemoved
}

// Each streams every row in ledger order.
func (r *LedgerRepository) Each(ctx context.Context, fn func(model.LedgerRow) error) error {
	rows, err := r.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s`, r.sql.selectList(), r.sql.table, rowPositionColumn))
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
