package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/Yulikepython/drive-cleaner/internal/event"
	"github.com/Yulikepython/drive-cleaner/internal/metrics"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// ReconcileService trashes ledgered files that have not been exempted and
// stamps their removal time.
type ReconcileService struct {
	source  FileSource
	ledger  Ledger
	limits  ReconcileLimits
	loc     *time.Location
	limiter *rate.Limiter
	bus     event.Bus
	metrics *metrics.SweepMetrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewReconcileService(source FileSource, ledger Ledger, limits ReconcileLimits, loc *time.Location) *ReconcileService {
	if loc == nil {
		loc = time.UTC
	}

	return &ReconcileService{
		source: source,
		ledger: ledger,
		limits: limits.normalized(),
		loc:    loc,
		logger: slog.Default().With("component", "sweep.reconcile"),
		now:    time.Now,
	}
}

// SetTrashRate paces trash calls to perSecond; zero or less disables pacing.
func (s *ReconcileService) SetTrashRate(perSecond float64) {
	if perSecond <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

func (s *ReconcileService) SetEventBus(bus event.Bus) {
	s.bus = bus
}

func (s *ReconcileService) SetMetrics(m *metrics.SweepMetrics) {
	s.metrics = m
}

// Reconcile trashes live, non-exempt rows chunk by chunk. A failed trash is
// reported and the row stays live for the next run; a successful one is
// stamped immediately so an interrupted run resumes where it stopped. No new
// chunk starts once the per-run cap of attempts is reached.
func (s *ReconcileService) Reconcile(ctx context.Context, runID string) (model.ReconcileResult, error) {
	var result model.ReconcileResult

	live, err := s.ledger.ListLiveRows(ctx)
	if err != nil {
		return result, fmt.Errorf("list live ledger rows: %w", err)
	}
	result.Live = len(live)
	s.metrics.SetLiveRows(len(live))

	eligible := make([]model.LedgerRow, 0, len(live))
	for _, row := range live {
		if row.Exempt() {
			result.Exempt++
			continue
		}
		eligible = append(eligible, row)
	}
	result.Eligible = len(eligible)

	if len(eligible) == 0 {
		s.logger.Info("no ledger rows eligible for removal", "run_id", runID, "live", result.Live, "exempt", result.Exempt)
		return result, nil
	}

	for chunk := range slices.Chunk(eligible, s.limits.DeleteChunkSize) {
		if result.Attempted >= s.limits.MaxFiles {
			result.CapReached = true
			break
		}

		for _, row := range chunk {
			if err := ctx.Err(); err != nil {
				return result, err
			}

			result.Attempted++
			if err := s.removeRow(ctx, row, runID, &result); err != nil {
				return result, err
			}
		}
	}

	s.logger.Info("reconciliation finished",
		"run_id", runID,
		"attempted", result.Attempted,
		"deleted", result.Deleted,
		"failed", len(result.Failures),
		"exempt", result.Exempt,
		"cap_reached", result.CapReached,
	)

	return result, nil
}

// removeRow returns an error only when the ledger cannot be updated; trash
// failures are recorded in result.
func (s *ReconcileService) removeRow(ctx context.Context, row model.LedgerRow, runID string, result *model.ReconcileResult) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if err := s.source.Trash(ctx, row.FileID); err != nil {
		failure := model.TrashFailure{RowPosition: row.RowPosition, FileID: row.FileID, Reason: err.Error()}
		result.Failures = append(result.Failures, failure)
		s.metrics.IncTrashFailure()
		event.Publish(s.bus, event.New(event.TypeTrashFailed, runID, event.FileTrashed{
			RowPosition: row.RowPosition,
			FileID:      row.FileID,
			Reason:      failure.Reason,
		}))
		s.logger.Warn("trash failed", "run_id", runID, "row", row.RowPosition, "file_id", row.FileID, "error", err)
		return nil
	}

	removedAt := s.now().In(s.loc).Format(model.TimestampLayout)
	if err := s.ledger.SetRemovedAt(ctx, row.RowPosition, removedAt); err != nil {
		if !errors.Is(err, model.ErrRowAlreadyRemoved) {
			return fmt.Errorf("record removal of row %d (file %s, already trashed): %w", row.RowPosition, row.FileID, err)
		}
		s.logger.Warn("ledger row was stamped by another run", "run_id", runID, "row", row.RowPosition, "file_id", row.FileID)
	}

	result.Deleted++
	s.metrics.IncTrashed()
	event.Publish(s.bus, event.New(event.TypeFileTrashed, runID, event.FileTrashed{
		RowPosition: row.RowPosition,
		FileID:      row.FileID,
		RemovedAt:   removedAt,
	}))

	return nil
}
