package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// Scheduler triggers sweep phases from cron expressions.
//
// Common expressions:
//   - "0 3 * * *"   daily at 3 AM
//   - "0 */6 * * *" every 6 hours
//   - "@daily"      once a day at midnight
type Scheduler struct {
	runner    *SweepService
	schedules map[model.Phase]string
	cron      *cron.Cron
	entries   map[model.Phase]cron.EntryID
	mu        sync.Mutex
	logger    *slog.Logger
	running   bool
}

// NewScheduler creates a scheduler in loc. Phases with an empty schedule
// are never triggered.
func NewScheduler(runner *SweepService, discoverSchedule string, reconcileSchedule string, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		runner: runner,
		schedules: map[model.Phase]string{
			model.PhaseDiscover:  discoverSchedule,
			model.PhaseReconcile: reconcileSchedule,
		},
		cron:    cron.New(cron.WithLocation(loc)),
		entries: map[model.Phase]cron.EntryID{},
		logger:  slog.Default().With("component", "sweep.scheduler"),
	}
}

// Start registers the configured phases and starts the cron loop. It stops
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, phase := range []model.Phase{model.PhaseDiscover, model.PhaseReconcile} {
		spec := s.schedules[phase]
		if spec == "" {
			s.logger.Info("schedule not configured, skipping", "phase", phase)
			continue
		}

		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", spec, phase, err)
		}

		id, err := s.cron.AddFunc(spec, func() {
			s.runPhase(ctx, phase)
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", phase, err)
		}
		s.entries[phase] = id
	}

	if len(s.entries) == 0 {
		return nil
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("sweep scheduler started",
		"discover", s.schedules[model.PhaseDiscover],
		"reconcile", s.schedules[model.PhaseReconcile],
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Scheduler) runPhase(ctx context.Context, phase model.Phase) {
	run, err := s.runner.Run(ctx, phase, "schedule")
	switch {
	case errors.Is(err, model.ErrRunInProgress):
		s.logger.Warn("previous run still in progress, skipping tick", "phase", phase)
	case err != nil:
		// already logged by the runner
		s.logger.Debug("scheduled run failed", "phase", phase, "run_id", run.RunID)
	}
}

// Stop stops the scheduler and waits for running jobs to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("sweep scheduler stopped")
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next trigger time of phase, or nil when it is not
// scheduled.
func (s *Scheduler) NextRun(phase model.Phase) *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[phase]
	if !ok {
		return nil
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() || entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}
