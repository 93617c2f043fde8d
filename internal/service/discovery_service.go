package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Yulikepython/drive-cleaner/internal/event"
	"github.com/Yulikepython/drive-cleaner/internal/metrics"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// DiscoveryService records files matching the sweep criteria in the ledger.
type DiscoveryService struct {
	source  FileSource
	ledger  Ledger
	limits  DiscoveryLimits
	loc     *time.Location
	bus     event.Bus
	metrics *metrics.SweepMetrics
	logger  *slog.Logger
}

func NewDiscoveryService(source FileSource, ledger Ledger, limits DiscoveryLimits, loc *time.Location) *DiscoveryService {
	if loc == nil {
		loc = time.UTC
	}

	return &DiscoveryService{
		source: source,
		ledger: ledger,
		limits: limits.normalized(),
		loc:    loc,
		logger: slog.Default().With("component", "sweep.discovery"),
	}
}

func (s *DiscoveryService) SetEventBus(bus event.Bus) {
	s.bus = bus
}

func (s *DiscoveryService) SetMetrics(m *metrics.SweepMetrics) {
	s.metrics = m
}

// Discover streams the target folder once, appends every new matching file
// to the ledger in chunks and stops after the per-run cap. Rows flushed
// before an error stay in the ledger; the next run skips them.
func (s *DiscoveryService) Discover(ctx context.Context, cfg model.SweepConfig, runID string) (model.DiscoverResult, error) {
	var result model.DiscoverResult

	if err := cfg.Validate(); err != nil {
		return result, err
	}

	seen, err := s.ledger.ListAllIDs(ctx)
	if err != nil {
		return result, fmt.Errorf("load ledger ids: %w", err)
	}

	files, err := s.source.Enumerate(ctx, cfg.FolderRef, model.EnumerateOptions{Recursive: cfg.Recursive})
	if err != nil {
		return result, err
	}

	matcher := NewFileMatcher(cfg, s.loc)
	buffer := make([]model.LedgerRow, 0, s.limits.WriteChunkSize)

	flush := func() error {
		if len(buffer) == 0 {
			return nil
		}
		if err := s.ledger.AppendRows(ctx, buffer); err != nil {
			return fmt.Errorf("append %d ledger rows: %w", len(buffer), err)
		}

		result.Written += len(buffer)
		result.Flushes++
		s.metrics.AddRecorded(len(buffer))
		event.Publish(s.bus, event.New(event.TypeFilesRecorded, runID, event.FilesRecorded{Count: len(buffer), Flush: result.Flushes}))
		s.logger.Debug("ledger chunk written", "rows", len(buffer), "flush", result.Flushes, "run_id", runID)

		buffer = make([]model.LedgerRow, 0, s.limits.WriteChunkSize)
		return nil
	}

	for file, iterErr := range files {
		if iterErr != nil {
			if err := flush(); err != nil {
				return result, err
			}
			return result, fmt.Errorf("enumerate %q: %w", cfg.FolderRef, iterErr)
		}

		result.Scanned++
		s.metrics.AddScanned(1)

		if _, exists := seen[file.ID]; exists {
			result.Duplicates++
			continue
		}
		if !matcher.Matches(file) {
			continue
		}

		// Source listings may repeat an id; count it once per run.
		seen[file.ID] = struct{}{}
		buffer = append(buffer, s.ledgerRow(file))
		result.Matched++

		if len(buffer) >= s.limits.WriteChunkSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
		if result.Matched >= s.limits.MaxFiles {
			result.CapReached = true
			break
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	s.logger.Info("discovery finished",
		"run_id", runID,
		"folder", cfg.FolderRef,
		"scanned", result.Scanned,
		"written", result.Written,
		"duplicates", result.Duplicates,
		"cap_reached", result.CapReached,
	)

	return result, nil
}

func (s *DiscoveryService) ledgerRow(file model.FileMetadata) model.LedgerRow {
	return model.LedgerRow{
		FileID:       file.ID,
		FileName:     file.Name,
		FileURL:      s.source.ViewURL(file.ID),
		OwnerEmail:   file.Owner.String(),
		LastModified: file.LastModified.In(s.loc).Format(model.TimestampLayout),
		FileSize:     file.SizeBytes,
	}
}
