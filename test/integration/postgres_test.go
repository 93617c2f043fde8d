//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulikepython/drive-cleaner/internal/database"
	"github.com/Yulikepython/drive-cleaner/internal/model"
	"github.com/Yulikepython/drive-cleaner/internal/repository"
)

func setupDB(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, dsn, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func uniqueName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func TestLedgerRepository(t *testing.T) {
	db := setupDB(t)
	ctx := t.Context()

	schema := model.DefaultLedgerSchema()
	schema.Table = uniqueName("file_log")
	repo := repository.NewLedgerRepository(db.Pool, schema)
	require.NoError(t, repo.EnsureTable(ctx))
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, schema.Table))
	})

	rows := make([]model.LedgerRow, 3)
	for i := range rows {
		rows[i] = model.LedgerRow{
			FileID:       fmt.Sprintf("f%d", i+1),
			FileName:     fmt.Sprintf("report-%d.pdf", i+1),
			FileURL:      fmt.Sprintf("https://example.com/f%d", i+1),
			OwnerEmail:   "a@example.com",
			LastModified: "2020-03-15 10:30:00",
			FileSize:     int64(100 * (i + 1)),
		}
	}
	require.NoError(t, repo.AppendRows(ctx, rows))

	ids, err := repo.ListAllIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, "f2")

	live, err := repo.ListLiveRows(ctx)
	require.NoError(t, err)
	require.Len(t, live, 3)
	assert.Equal(t, "f1", live[0].FileID)

	require.NoError(t, repo.SetExemption(ctx, live[1].RowPosition, "keep for audit"))
	require.NoError(t, repo.SetRemovedAt(ctx, live[0].RowPosition, "2024-05-01 09:00:00"))
	assert.ErrorIs(t, repo.SetRemovedAt(ctx, live[0].RowPosition, "2024-05-02 09:00:00"), model.ErrRowAlreadyRemoved)
	assert.ErrorIs(t, repo.SetExemption(ctx, live[0].RowPosition, "too late"), model.ErrRowAlreadyRemoved)
	assert.ErrorIs(t, repo.SetRemovedAt(ctx, 9999, "2024-05-01 09:00:00"), model.ErrRowNotFound)

	removed, meta, err := repo.List(ctx, model.LedgerQuery{Filter: model.LedgerFilterRemoved})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "2024-05-01 09:00:00", removed[0].RemovedAt)
	assert.Equal(t, 1, meta.Total)

	exempt, _, err := repo.List(ctx, model.LedgerQuery{Filter: model.LedgerFilterExempt})
	require.NoError(t, err)
	require.Len(t, exempt, 1)
	assert.Equal(t, "keep for audit", exempt[0].ExemptionNote)

	var seen []string
	require.NoError(t, repo.Each(ctx, func(row model.LedgerRow) error {
		seen = append(seen, row.FileID)
		return nil
	}))
	assert.Equal(t, []string{"f1", "f2", "f3"}, seen)
}

func TestRunRepository(t *testing.T) {
	db := setupDB(t)
	ctx := t.Context()
	repo := repository.NewRunRepository(db.Pool)

	runID := uuid.NewString()
	started := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, repo.Create(ctx, model.RunRecord{
		RunID:     runID,
		Phase:     model.PhaseDiscover,
		Trigger:   "integration",
		Status:    model.RunStatusRunning,
		StartedAt: started.Format(time.RFC3339Nano),
	}))
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM sweep_runs WHERE id = $1`, runID)
	})

	require.NoError(t, repo.Update(ctx, model.RunRecord{
		RunID:      runID,
		Phase:      model.PhaseDiscover,
		Status:     model.RunStatusSucceeded,
		StartedAt:  started.Format(time.RFC3339Nano),
		FinishedAt: started.Add(time.Second).Format(time.RFC3339Nano),
		Discover:   &model.DiscoverResult{Scanned: 10, Matched: 4, Written: 4, Flushes: 1},
	}))

	run, err := repo.FindByID(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSucceeded, run.Status)
	assert.Equal(t, "integration", run.Trigger)
	require.NotNil(t, run.Discover)
	assert.Equal(t, 4, run.Discover.Written)
	assert.NotEmpty(t, run.FinishedAt)

	_, err = repo.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, model.ErrRunNotFound)
}

func TestAuditRepository(t *testing.T) {
	db := setupDB(t)
	ctx := t.Context()
	repo := repository.NewAuditRepository(db.Pool)

	resource := uniqueName("row")
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM audit_entries WHERE resource = $1`, resource)
	})

	require.NoError(t, repo.Log(ctx, model.AuditEntry{
		Action:     "ledger.exempt",
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Actor:      model.AuditActor{UserID: "ops", Role: "operator", IP: "127.0.0.1"},
		Status:     "success",
		Resource:   resource,
		After:      map[string]string{"note": "keep"},
	}))

	entries, meta, err := repo.Query(ctx, model.AuditQuery{Action: "ledger.exempt", Resource: resource})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, meta.Total)
	assert.Equal(t, "ops", entries[0].Actor.UserID)
	assert.Equal(t, "success", entries[0].Status)
}

func TestSweepConfigRepository(t *testing.T) {
	db := setupDB(t)
	ctx := t.Context()

	name := uniqueName("cfg")
	repo := repository.NewSweepConfigRepository(db.Pool, model.ConfigLocation{Name: name})
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM sweep_config WHERE name = $1`, name)
	})

	_, err := repo.Load(ctx)
	assert.ErrorIs(t, err, model.ErrConfiguration)

	year, month, err := model.ParseCutoff("2023-06")
	require.NoError(t, err)
	minSize := int64(1 << 20)
	require.NoError(t, repo.Save(ctx, model.SweepConfig{
		FolderRef:    "1AbCdEfGhIjKlMnOpQrStUvWxYz012345",
		CutoffYear:   year,
		CutoffMonth:  month,
		MinSizeBytes: &minSize,
		OwnerEmail:   "a@example.com",
	}))

	cfg, err := repo.Load(ctx)
	require.NoError(t, err)
	gotYear, gotMonth, ok := cfg.Cutoff()
	require.True(t, ok)
	assert.Equal(t, 2023, gotYear)
	assert.Equal(t, 6, gotMonth)
	require.NotNil(t, cfg.MinSizeBytes)
	assert.Equal(t, minSize, *cfg.MinSizeBytes)
	assert.Equal(t, "a@example.com", cfg.OwnerEmail)

	require.NoError(t, repo.Save(ctx, model.SweepConfig{FolderRef: "other", Recursive: true}))
	cfg, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.FolderRef)
	assert.True(t, cfg.Recursive)
	assert.Nil(t, cfg.CutoffYear)
}
