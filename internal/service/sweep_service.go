package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Yulikepython/drive-cleaner/internal/event"
	"github.com/Yulikepython/drive-cleaner/internal/metrics"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

const maxRecentRuns = 200

// SweepService runs the two phases, one run per phase at a time, and keeps
// their history.
type SweepService struct {
	config    ConfigProvider
	discovery *DiscoveryService
	reconcile *ReconcileService
	store     RunStore
	bus       event.Bus
	metrics   *metrics.SweepMetrics
	logger    *slog.Logger

	locks map[model.Phase]*sync.Mutex
	wg    sync.WaitGroup

	background context.Context
	stopAll    context.CancelFunc

	mu     sync.RWMutex
	runs   map[string]*model.RunRecord
	recent []string
}

func NewSweepService(config ConfigProvider, discovery *DiscoveryService, reconcile *ReconcileService) *SweepService {
	background, stopAll := context.WithCancel(context.Background())

	return &SweepService{
		config:    config,
		discovery: discovery,
		reconcile: reconcile,
		logger:    slog.Default().With("component", "sweep.runner"),

		background: background,
		stopAll:    stopAll,

		locks: map[model.Phase]*sync.Mutex{
			model.PhaseDiscover:  {},
			model.PhaseReconcile: {},
		},
		runs: map[string]*model.RunRecord{},
	}
}

// SetRunStore enables durable run history.
func (s *SweepService) SetRunStore(store RunStore) {
	s.store = store
}

func (s *SweepService) SetEventBus(bus event.Bus) {
	s.bus = bus
}

func (s *SweepService) SetMetrics(m *metrics.SweepMetrics) {
	s.metrics = m
}

// Run executes phase synchronously. The returned record is filled in even
// when the run fails.
func (s *SweepService) Run(ctx context.Context, phase model.Phase, trigger string) (model.RunRecord, error) {
	unlock, err := s.acquire(phase)
	if err != nil {
		return model.RunRecord{}, err
	}
	defer unlock()

	run := s.begin(ctx, phase, trigger)
	return s.execute(ctx, run)
}

// Start executes phase in the background and returns the running record.
// The run outlives ctx cancellation; Shutdown cancels it.
func (s *SweepService) Start(ctx context.Context, phase model.Phase, trigger string) (model.RunRecord, error) {
	unlock, err := s.acquire(phase)
	if err != nil {
		return model.RunRecord{}, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopOnShutdown := context.AfterFunc(s.background, cancel)
	run := s.begin(runCtx, phase, trigger)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer unlock()
		defer cancel()
		defer stopOnShutdown()
		_, _ = s.execute(runCtx, run)
	}()

	return run, nil
}

// Wait blocks until every background run has finished.
func (s *SweepService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels background runs and waits for them to return. A cancelled
// run keeps the ledger rows it already committed.
func (s *SweepService) Shutdown() {
	s.stopAll()
	s.wg.Wait()
}

func (s *SweepService) GetRun(ctx context.Context, runID string) (model.RunRecord, error) {
	s.mu.RLock()
	run, exists := s.runs[runID]
	s.mu.RUnlock()
	if exists {
		return cloneRun(run), nil
	}

	if s.store == nil {
		return model.RunRecord{}, model.ErrRunNotFound
	}
	return s.store.FindByID(ctx, runID)
}

// ListRuns returns runs newest first.
func (s *SweepService) ListRuns(ctx context.Context, page int, limit int) (model.RunListData, model.Meta, error) {
	page, limit = model.NormalizePage(page, limit, 20, 100)

	if s.store != nil {
		items, meta, err := s.store.List(ctx, page, limit)
		if err != nil {
			return model.RunListData{}, model.Meta{}, err
		}
		return model.RunListData{Items: items}, meta, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.recent)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	items := make([]model.RunRecord, 0, end-start)
	for i := start; i < end; i++ {
		// recent is oldest first
		items = append(items, cloneRun(s.runs[s.recent[total-1-i]]))
	}

	return model.RunListData{Items: items}, model.NewMeta(page, limit, total), nil
}

func (s *SweepService) acquire(phase model.Phase) (func(), error) {
	lock, ok := s.locks[phase]
	if !ok {
		return nil, model.ErrUnknownPhase
	}
	if !lock.TryLock() {
		return nil, model.ErrRunInProgress
	}
	return lock.Unlock, nil
}

func (s *SweepService) begin(ctx context.Context, phase model.Phase, trigger string) model.RunRecord {
	run := model.RunRecord{
		RunID:     uuid.NewString(),
		Phase:     phase,
		Trigger:   trigger,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}

	s.remember(run)
	if s.store != nil {
		if err := s.store.Create(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Warn("failed to persist run", "run_id", run.RunID, "error", err)
		}
	}

	event.Publish(s.bus, event.New(event.TypeRunStarted, run.RunID, run))
	s.logger.Info("run started", "run_id", run.RunID, "phase", phase, "trigger", trigger)
	return run
}

func (s *SweepService) execute(ctx context.Context, run model.RunRecord) (model.RunRecord, error) {
	started := time.Now()

	var runErr error
	switch run.Phase {
	case model.PhaseDiscover:
		cfg, err := s.config.Load(ctx)
		if err != nil {
			runErr = err
			break
		}
		result, err := s.discovery.Discover(ctx, cfg, run.RunID)
		run.Discover = &result
		runErr = err
	case model.PhaseReconcile:
		result, err := s.reconcile.Reconcile(ctx, run.RunID)
		run.Reconcile = &result
		runErr = err
	default:
		runErr = model.ErrUnknownPhase
	}

	run.FinishedAt = time.Now().UTC().Format(time.RFC3339Nano)
	run.Status = model.RunStatusSucceeded
	eventType := event.TypeRunCompleted
	if runErr != nil {
		run.Status = model.RunStatusFailed
		run.Error = runErr.Error()
		eventType = event.TypeRunFailed
	}

	// An interrupted run must still reach its final status in the store.
	s.remember(run)
	if s.store != nil {
		if err := s.store.Update(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Warn("failed to persist run", "run_id", run.RunID, "error", err)
		}
	}

	s.metrics.ObserveRun(string(run.Phase), string(run.Status), time.Since(started))
	event.Publish(s.bus, event.New(eventType, run.RunID, run))

	if runErr != nil {
		level := slog.LevelError
		if errors.Is(runErr, context.Canceled) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "run failed", "run_id", run.RunID, "phase", run.Phase, "error", runErr)
		return run, runErr
	}

	s.logger.Info("run completed", "run_id", run.RunID, "phase", run.Phase, "elapsed", time.Since(started))
	return run, nil
}

func (s *SweepService) remember(run model.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneRun(&run)
	if _, exists := s.runs[run.RunID]; !exists {
		s.recent = append(s.recent, run.RunID)
	}
	s.runs[run.RunID] = &stored

	if overflow := len(s.recent) - maxRecentRuns; overflow > 0 {
		for _, id := range s.recent[:overflow] {
			delete(s.runs, id)
		}
		s.recent = slices.Delete(s.recent, 0, overflow)
	}
}

func cloneRun(value *model.RunRecord) model.RunRecord {
	cloned := *value
	if value.Discover != nil {
		d := *value.Discover
		cloned.Discover = &d
	}
	if value.Reconcile != nil {
		r := *value.Reconcile
		r.Failures = slices.Clone(value.Reconcile.Failures)
		cloned.Reconcile = &r
	}
	return cloned
}
