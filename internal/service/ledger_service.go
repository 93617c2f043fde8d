package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/pkg/apierror"
)

const maxExemptionNoteLength = 1000

// LedgerService is the operator view of the ledger: review, exemptions and
// exports.
type LedgerService struct {
	ledger LedgerAdmin
	source FileSource
	schema model.LedgerSchema
	audit  *AuditService
}

func NewLedgerService(ledger LedgerAdmin, source FileSource, schema model.LedgerSchema) *LedgerService {
	return &LedgerService{ledger: ledger, source: source, schema: schema}
}

func (s *LedgerService) SetAuditService(audit *AuditService) {
	s.audit = audit
}

func (s *LedgerService) List(ctx context.Context, query model.LedgerQuery) (model.LedgerListData, model.Meta, error) {
	switch query.Filter {
	case model.LedgerFilterAll, model.LedgerFilterLive, model.LedgerFilterRemoved, model.LedgerFilterExempt:
	default:
		return model.LedgerListData{}, model.Meta{}, apierror.New("BAD_REQUEST", "filter must be one of: live|removed|exempt", string(query.Filter), http.StatusBadRequest)
	}
	query.Page, query.Limit = model.NormalizePage(query.Page, query.Limit, 100, 1000)

	rows, meta, err := s.ledger.List(ctx, query)
	if err != nil {
		return model.LedgerListData{}, model.Meta{}, err
	}
	return model.LedgerListData{Items: rows}, meta, nil
}

// SetExemption writes the review note of a row. An empty note makes the row
// eligible for removal again.
func (s *LedgerService) SetExemption(ctx context.Context, rowPosition int64, note string, actor model.AuditActor) (model.LedgerRow, error) {
	note = strings.TrimSpace(note)
	if len(note) > maxExemptionNoteLength {
		return model.LedgerRow{}, apierror.New("BAD_REQUEST", "exemption note is too long", strconv.Itoa(len(note)), http.StatusBadRequest)
	}

	before, err := s.ledger.FindByPosition(ctx, rowPosition)
	if err != nil {
		return model.LedgerRow{}, err
	}
	if before.Removed() {
		return model.LedgerRow{}, model.ErrRowAlreadyRemoved
	}

	resource := fmt.Sprintf("ledger/%d", rowPosition)
	if err := s.ledger.SetExemption(ctx, rowPosition, note); err != nil {
		s.audit.Log(ctx, "ledger.exempt", actor, "failed", resource, before.ExemptionNote, note, err.Error())
		return model.LedgerRow{}, err
	}

	after := before
	after.ExemptionNote = note
	s.audit.Log(ctx, "ledger.exempt", actor, "success", resource, before.ExemptionNote, note, "")
	return after, nil
}

// FileInfo returns the live metadata of the file behind a ledger row.
func (s *LedgerService) FileInfo(ctx context.Context, rowPosition int64) (model.FileMetadata, error) {
	row, err := s.ledger.FindByPosition(ctx, rowPosition)
	if err != nil {
		return model.FileMetadata{}, err
	}

	file, err := s.source.GetByID(ctx, row.FileID)
	if err != nil {
		if errors.Is(err, model.ErrFileNotFound) {
			return model.FileMetadata{}, err
		}
		return model.FileMetadata{}, fmt.Errorf("get file %s: %w", row.FileID, err)
	}
	return file, nil
}

// Export writes the whole ledger as CSV: the header row, then one line per
// row in ledger order.
func (s *LedgerService) Export(ctx context.Context, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(s.schema.Headers()); err != nil {
		return err
	}

	err := s.ledger.Each(ctx, func(row model.LedgerRow) error {
		return writer.Write([]string{
			row.FileID,
			row.FileName,
			row.FileURL,
			row.OwnerEmail,
			row.LastModified,
			strconv.FormatInt(row.FileSize, 10),
			row.ExemptionNote,
			row.RemovedAt,
		})
	})
	if err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}
