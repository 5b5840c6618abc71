package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/model"
	"github.com/hokaccha/remindd/internal/storage"
)

func TestReconcileGraceBoundary(t *testing.T) {
	store := storage.NewMemoryStore()
	d := NewMissedDetector(store, 0, time.UTC, zap.NewNop())
	ctx := context.Background()

	exec := model.Execution{
		ID:            "e1",
		TaskID:        "t1",
		Date:          monday,
		ScheduledTime: "08:00",
		Status:        model.ExecutionStatusPending,
	}
	require.NoError(t, store.SaveExecutions(ctx, []model.Execution{exec}))

	// 119 minutes past: still inside the default 2 hour grace period.
	missed, err := d.Reconcile(ctx, at("09:59"))
	require.NoError(t, err)
	assert.Empty(t, missed)

	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusPending, all[0].Status)

	// 121 minutes past: reclassified.
	missed, err = d.Reconcile(ctx, at("10:01"))
	require.NoError(t, err)
	require.Len(t, missed, 1)
	assert.Equal(t, "e1", missed[0].ID)

	all, err = store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionStatusMissed, all[0].Status)

	// One-way: a later pass leaves it alone.
	missed, err = d.Reconcile(ctx, at("12:00"))
	require.NoError(t, err)
	assert.Empty(t, missed)
}

func TestReconcileIgnoresTerminalExecutions(t *testing.T) {
	store := storage.NewMemoryStore()
	d := NewMissedDetector(store, 0, time.UTC, zap.NewNop())
	ctx := context.Background()

	completedAt := at("08:10")
	executions := []model.Execution{
		{ID: "done", TaskID: "t1", Date: monday, ScheduledTime: "08:00", Status: model.ExecutionStatusCompleted, CompletedAt: &completedAt},
	}
	require.NoError(t, store.SaveExecutions(ctx, executions))

	missed, err := d.Reconcile(ctx, at("23:00"))
	require.NoError(t, err)
	assert.Empty(t, missed)
}

func TestReconcileSweepsOlderDates(t *testing.T) {
	store := storage.NewMemoryStore()
	d := NewMissedDetector(store, 0, time.UTC, zap.NewNop())
	ctx := context.Background()

	// A pending execution left over from a previous day is swept too.
	executions := []model.Execution{
		{ID: "stale", TaskID: "t1", Date: "2025-03-01", ScheduledTime: "20:00", Status: model.ExecutionStatusPending},
	}
	require.NoError(t, store.SaveExecutions(ctx, executions))

	missed, err := d.Reconcile(ctx, at("08:00"))
	require.NoError(t, err)
	require.Len(t, missed, 1)
	assert.Equal(t, "stale", missed[0].ID)
}

func TestReconcileCustomGrace(t *testing.T) {
	store := storage.NewMemoryStore()
	d := NewMissedDetector(store, 30*time.Minute, time.UTC, zap.NewNop())
	ctx := context.Background()

	exec := model.Execution{ID: "e1", TaskID: "t1", Date: monday, ScheduledTime: "08:00", Status: model.ExecutionStatusPending}
	require.NoError(t, store.SaveExecutions(ctx, []model.Execution{exec}))

	missed, err := d.Reconcile(ctx, at("08:29"))
	require.NoError(t, err)
	assert.Empty(t, missed)

	missed, err = d.Reconcile(ctx, at("08:31"))
	require.NoError(t, err)
	assert.Len(t, missed, 1)
}
