package repository

import (
	"strings"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

const rowPositionColumn = "row_position"

// ledgerSQL holds the quoted identifiers of one ledger schema.
type ledgerSQL struct {
	table     string
	columns   []string
	fileID    string
	exemption string
	deletedAt string
}

func newLedgerSQL(schema model.LedgerSchema, quote func(string) string) ledgerSQL {
	names := schema.ColumnNames()
	columns := make([]string, len(names))
	for i, name := range names {
		columns[i] = quote(name)
	}

	return ledgerSQL{
		table:     quote(schema.Table),
		columns:   columns,
		fileID:    quote(schema.FileID.Name),
		exemption: quote(schema.ExemptionNote.Name),
		deletedAt: quote(schema.DeletedAt.Name),
	}
}

// selectList is the projection read by scanLedgerRow.
func (q ledgerSQL) selectList() string {
	return rowPositionColumn + ", " + strings.Join(q.columns, ", ")
}

func (q ledgerSQL) insertList() string {
	return strings.Join(q.columns, ", ")
}

func (q ledgerSQL) filterClause(filter model.LedgerFilter) string {
	switch filter {
	case model.LedgerFilterLive:
		return "WHERE " + q.deletedAt + " = ''"
	case model.LedgerFilterRemoved:
		return "WHERE " + q.deletedAt + " <> ''"
	case model.LedgerFilterExempt:
		return "WHERE " + q.deletedAt + " = '' AND " + q.exemption + " <> ''"
	default:
		return ""
	}
}

// createTable returns the DDL of the ledger table; positionType is the
// backend's auto-increment key definition.
func (q ledgerSQL) createTable(positionType string, sizeType string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(q.table)
	b.WriteString(" (\n    ")
	b.WriteString(rowPositionColumn)
	b.WriteString(" ")
	b.WriteString(positionType)

	for i, column := range q.columns {
		b.WriteString(",\n    ")
		b.WriteString(column)
		// size is the sixth ledger column
		if i == 5 {
			b.WriteString(" " + sizeType + " NOT NULL DEFAULT 0")
			continue
		}
		b.WriteString(" TEXT NOT NULL DEFAULT ''")
	}
	b.WriteString("\n)")
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedgerRow(scanner rowScanner) (model.LedgerRow, error) {
	var row model.LedgerRow
	err := scanner.Scan(
		&row.RowPosition,
		&row.FileID,
		&row.FileName,
		&row.FileURL,
		&row.OwnerEmail,
		&row.LastModified,
		&row.FileSize,
		&row.ExemptionNote,
		&row.RemovedAt,
	)
	return row, err
}

func ledgerValues(row model.LedgerRow) []any {
	return []any{
		row.FileID,
		row.FileName,
		row.FileURL,
		row.OwnerEmail,
		row.LastModified,
		row.FileSize,
		row.ExemptionNote,
		row.RemovedAt,
	}
}

// quoteIdent double-quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
