package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulikepython/drive-cleaner/internal/event"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

func TestAuditService_RecordsBusEvents(t *testing.T) {
	bus := event.NewBus()
	audit := NewAuditService(nil)
	audit.Start(context.Background(), bus)

	bus.Publish(event.New(event.TypeRunStarted, "run-1", model.RunRecord{RunID: "run-1"}))
	bus.Publish(event.New(event.TypeTrashFailed, "run-1", event.FileTrashed{RowPosition: 7, FileID: "f7", Reason: "denied"}))
	bus.Publish(event.New(event.Type("sweep.unknown"), "run-1", nil))
	audit.Stop()

	entries, meta, err := audit.Query(context.Background(), model.AuditQuery{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, meta.Total)

	// newest first
	assert.Equal(t, "file.trash", entries[0].Action)
	assert.Equal(t, "ledger/7", entries[0].Resource)
	assert.Equal(t, "failed", entries[0].Status)
	assert.Equal(t, "denied", entries[0].Error)
	assert.Equal(t, "run.start", entries[1].Action)
	assert.Equal(t, "run/run-1", entries[1].Resource)
}

func TestAuditService_QueryFilters(t *testing.T) {
	audit := NewAuditService(nil)
	ctx := context.Background()
	actor := model.AuditActor{UserID: "ops"}

	audit.Log(ctx, "run.trigger", actor, "success", "run/a", nil, nil, "")
	audit.Log(ctx, "ledger.exempt", actor, "failed", "ledger/3", "", "keep", "boom")

	failed, _, err := audit.Query(ctx, model.AuditQuery{Status: "FAILED"})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "ledger.exempt", failed[0].Action)

	byResource, _, err := audit.Query(ctx, model.AuditQuery{Resource: "run/"})
	require.NoError(t, err)
	require.Len(t, byResource, 1)

	future, _, err := audit.Query(ctx, model.AuditQuery{From: time.Now().Add(time.Hour).Format(time.RFC3339)})
	require.NoError(t, err)
	assert.Empty(t, future)

	_, _, err = audit.Query(ctx, model.AuditQuery{From: "yesterday"})
	assert.Error(t, err)
}

func TestAuditService_NilIsSafe(t *testing.T) {
	var audit *AuditService
	audit.Log(context.Background(), "run.trigger", model.AuditActor{}, "success", "", nil, nil, "")
	audit.Stop()
}
