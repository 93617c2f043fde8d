package service

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulikepython/drive-cleaner/internal/event"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

type staticConfig struct {
	cfg model.SweepConfig
	err error
}

func (c staticConfig) Load(_ context.Context) (model.SweepConfig, error) {
	return c.cfg, c.err
}

// blockingSource holds enumeration open until release is closed or the
// context is cancelled.
type blockingSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSource() *blockingSource {
	return &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
}

func (s *blockingSource) Enumerate(ctx context.Context, _ string, _ model.EnumerateOptions) (iter.Seq2[model.FileMetadata, error], error) {
	return func(yield func(model.FileMetadata, error) bool) {
		s.once.Do(func() { close(s.started) })
		select {
		case <-s.release:
		case <-ctx.Done():
			yield(model.FileMetadata{}, ctx.Err())
		}
	}, nil
}

func (s *blockingSource) GetByID(_ context.Context, _ string) (model.FileMetadata, error) {
	return model.FileMetadata{}, model.ErrFileNotFound
}

func (s *blockingSource) Trash(_ context.Context, _ string) error { return nil }

func (s *blockingSource) ViewURL(fileID string) string { return "file://" + fileID }

func newTestSweep(source FileSource, ledger Ledger, config ConfigProvider) *SweepService {
	return NewSweepService(
		config,
		NewDiscoveryService(source, ledger, DefaultDiscoveryLimits(), time.UTC),
		NewReconcileService(source, ledger, DefaultReconcileLimits(), time.UTC),
	)
}

func TestSweepService_RejectsConcurrentRunOfSamePhase(t *testing.T) {
	source := newBlockingSource()
	svc := newTestSweep(source, newMemLedger(), staticConfig{cfg: discoverConfig()})

	started, err := svc.Start(context.Background(), model.PhaseDiscover, "api")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, started.Status)
	<-source.started

	_, err = svc.Run(context.Background(), model.PhaseDiscover, "cli")
	assert.ErrorIs(t, err, model.ErrRunInProgress)

	// the other phase is not blocked
	other, err := svc.Run(context.Background(), model.PhaseReconcile, "cli")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, other.Status)

	close(source.release)
	svc.Wait()

	finished, err := svc.GetRun(context.Background(), started.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, finished.Status)
	require.NotNil(t, finished.Discover)
	assert.NotEmpty(t, finished.FinishedAt)

	_, err = svc.Run(context.Background(), model.PhaseDiscover, "cli")
	assert.NoError(t, err)
}

func TestSweepService_ShutdownCancelsBackgroundRuns(t *testing.T) {
	source := newBlockingSource()
	svc := newTestSweep(source, newMemLedger(), staticConfig{cfg: discoverConfig()})

	ctx, cancel := context.WithCancel(context.Background())
	started, err := svc.Start(ctx, model.PhaseDiscover, "api")
	require.NoError(t, err)
	<-source.started

	// the request context ending does not stop the run
	cancel()
	run, err := svc.GetRun(context.Background(), started.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	svc.Shutdown()

	run, err = svc.GetRun(context.Background(), started.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, context.Canceled.Error())
}

// ctxRunStore rejects writes on a cancelled context, like a database pool.
type ctxRunStore struct {
	mu   sync.Mutex
	runs map[string]model.RunRecord
}

func newCtxRunStore() *ctxRunStore {
	return &ctxRunStore{runs: map[string]model.RunRecord{}}
}

func (s *ctxRunStore) Create(ctx context.Context, run model.RunRecord) error {
	return s.put(ctx, run)
}

func (s *ctxRunStore) Update(ctx context.Context, run model.RunRecord) error {
	return s.put(ctx, run)
}

func (s *ctxRunStore) put(ctx context.Context, run model.RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.RunID] = run
	return nil
}

func (s *ctxRunStore) FindByID(_ context.Context, runID string) (model.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return model.RunRecord{}, model.ErrRunNotFound
	}
	return run, nil
}

func (s *ctxRunStore) List(_ context.Context, _ int, _ int) ([]model.RunRecord, model.Meta, error) {
	return nil, model.Meta{}, nil
}

func TestSweepService_PersistsFinalStatusOfInterruptedRuns(t *testing.T) {
	t.Run("background run cancelled by shutdown", func(t *testing.T) {
		source := newBlockingSource()
		store := newCtxRunStore()
		svc := newTestSweep(source, newMemLedger(), staticConfig{cfg: discoverConfig()})
		svc.SetRunStore(store)

		started, err := svc.Start(context.Background(), model.PhaseDiscover, "api")
		require.NoError(t, err)
		<-source.started

		svc.Shutdown()

		persisted, err := store.FindByID(context.Background(), started.RunID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, persisted.Status)
		assert.NotEmpty(t, persisted.FinishedAt)
		assert.Contains(t, persisted.Error, context.Canceled.Error())
	})

	t.Run("foreground run cancelled by signal", func(t *testing.T) {
		source := newBlockingSource()
		store := newCtxRunStore()
		svc := newTestSweep(source, newMemLedger(), staticConfig{cfg: discoverConfig()})
		svc.SetRunStore(store)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-source.started
			cancel()
		}()

		run, err := svc.Run(ctx, model.PhaseDiscover, "cli")
		require.ErrorIs(t, err, context.Canceled)

		persisted, err := store.FindByID(context.Background(), run.RunID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, persisted.Status)
	})
}

func TestSweepService_RecordsFailedRuns(t *testing.T) {
	cfgErr := model.NewConfigurationError("folder", "target folder is not set")
	svc := newTestSweep(newBlockingSource(), newMemLedger(), staticConfig{err: cfgErr})

	run, err := svc.Run(context.Background(), model.PhaseDiscover, "cli")

	assert.ErrorIs(t, err, model.ErrConfiguration)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, cfgErr.Error(), run.Error)
	assert.Nil(t, run.Discover)
}

func TestSweepService_History(t *testing.T) {
	svc := newTestSweep(newBlockingSource(), newMemLedger(), staticConfig{cfg: discoverConfig()})
	ctx := context.Background()

	first, err := svc.Run(ctx, model.PhaseReconcile, "cli")
	require.NoError(t, err)
	second, err := svc.Run(ctx, model.PhaseReconcile, "schedule")
	require.NoError(t, err)

	data, meta, err := svc.ListRuns(ctx, 1, 20)
	require.NoError(t, err)
	require.Len(t, data.Items, 2)
	assert.Equal(t, second.RunID, data.Items[0].RunID)
	assert.Equal(t, first.RunID, data.Items[1].RunID)
	assert.Equal(t, "schedule", data.Items[0].Trigger)
	assert.Equal(t, 2, meta.Total)

	_, err = svc.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrRunNotFound)

	_, err = svc.Run(ctx, model.Phase("purge"), "cli")
	assert.ErrorIs(t, err, model.ErrUnknownPhase)
}

func TestSweepService_PublishesRunEvents(t *testing.T) {
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	svc := newTestSweep(newBlockingSource(), newMemLedger(), staticConfig{cfg: discoverConfig()})
	svc.SetEventBus(bus)

	run, err := svc.Run(context.Background(), model.PhaseReconcile, "cli")
	require.NoError(t, err)

	first := <-events
	assert.Equal(t, event.TypeRunStarted, first.Type)
	assert.Equal(t, run.RunID, first.RunID)
	last := <-events
	assert.Equal(t, event.TypeRunCompleted, last.Type)
}
