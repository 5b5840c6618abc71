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
	"github.com/hokaccha/remindd/internal/testutil"
)

func newEscalator(t *testing.T) (*Escalator, *storage.MemoryStore, *testutil.RecordingDispatcher) {
	t.Helper()
	store := storage.NewMemoryStore()
	dispatcher := testutil.NewRecordingDispatcher()
	return NewEscalator(store, dispatcher, time.UTC, zap.NewNop()), store, dispatcher
}

func seedPending(t *testing.T, store *storage.MemoryStore, reminderMinutes int) (model.Task, model.Execution) {
	t.Helper()
	ctx := context.Background()

	task := testutil.NewTask("Take medicine", []string{"08:00"}, []int{1}, reminderMinutes)
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	exec := model.Execution{
		ID:            "e1",
		TaskID:        task.ID,
		Date:          monday,
		ScheduledTime: "08:00",
		Status:        model.ExecutionStatusPending,
	}
	require.NoError(t, store.SaveExecutions(ctx, []model.Execution{exec}))
	return task, exec
}

func at(clock string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", monday+" "+clock)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}

func TestTickMonotonicEscalation(t *testing.T) {
	e, store, dispatcher := newEscalator(t)
	ctx := context.Background()
	seedPending(t, store, 10)

	// 35 minutes past the scheduled time with a 10 minute interval: three
	// intervals elapsed, but exactly one notification.
	issued, err := e.Tick(ctx, at("08:35"))
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, 3, issued[0].Number)
	assert.Equal(t, 1, dispatcher.ReminderCount())

	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, all[0].ReminderCount)

	// Same instant again: nothing new is due.
	issued, err = e.Tick(ctx, at("08:35"))
	require.NoError(t, err)
	assert.Empty(t, issued)
	assert.Equal(t, 1, dispatcher.ReminderCount())
}

func TestTickCollapsesSuspensionGap(t *testing.T) {
	e, store, dispatcher := newEscalator(t)
	ctx := context.Background()
	seedPending(t, store, 10)

	// No ticks for two hours: the counter catches up in one jump and only
	// one notification fires.
	issued, err := e.Tick(ctx, at("10:00"))
	require.NoError(t, err)
	require.Len(t, issued, 1)
	assert.Equal(t, 12, issued[0].Number)
	assert.Equal(t, 1, dispatcher.ReminderCount())

	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, all[0].ReminderCount)
}

func TestTickNotYetDue(t *testing.T) {
	e, store, dispatcher := newEscalator(t)
	ctx := context.Background()
	seedPending(t, store, 10)

	// Before the scheduled instant nothing happens.
	issued, err := e.Tick(ctx, at("07:59"))
	require.NoError(t, err)
	assert.Empty(t, issued)
	assert.Zero(t, dispatcher.ReminderCount())

	// Exactly at the scheduled instant elapsed is zero, still not due.
	issued, err = e.Tick(ctx, at("08:00"))
	require.NoError(t, err)
	assert.Empty(t, issued)
}

func TestTickSkipsTerminalExecutions(t *testing.T) {
	e, store, dispatcher := newEscalator(t)
	ctx := context.Background()
	task, _ := seedPending(t, store, 10)

	completedAt := at("08:05")
	executions := []model.Execution{
		{ID: "done", TaskID: task.ID, Date: monday, ScheduledTime: "08:00", Status: model.ExecutionStatusCompleted, CompletedAt: &completedAt, ReminderCount: 1},
		{ID: "gone", TaskID: task.ID, Date: monday, ScheduledTime: "08:00", Status: model.ExecutionStatusMissed},
	}
	require.NoError(t, store.SaveExecutions(ctx, executions))

	issued, err := e.Tick(ctx, at("09:00"))
	require.NoError(t, err)
	assert.Empty(t, issued)
	assert.Zero(t, dispatcher.ReminderCount())

	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	for _, exec := range all {
		switch exec.ID {
		case "done":
			assert.Equal(t, model.ExecutionStatusCompleted, exec.Status)
			assert.Equal(t, 1, exec.ReminderCount)
		case "gone":
			assert.Equal(t, model.ExecutionStatusMissed, exec.Status)
		}
	}
}

func TestTickSkipsInactiveAndOrphanedTasks(t *testing.T) {
	e, store, dispatcher := newEscalator(t)
	ctx := context.Background()

	task := testutil.NewTask("Paused", []string{"08:00"}, []int{1}, 10)
	task.IsActive = false
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	executions := []model.Execution{
		{ID: "inactive", TaskID: task.ID, Date: monday, ScheduledTime: "08:00", Status: model.ExecutionStatusPending},
		{ID: "orphan", TaskID: "no-such-task", Date: monday, ScheduledTime: "08:00", Status: model.ExecutionStatusPending},
	}
	require.NoError(t, store.SaveExecutions(ctx, executions))

	issued, err := e.Tick(ctx, at("09:00"))
	require.NoError(t, err)
	assert.Empty(t, issued)
	assert.Zero(t, dispatcher.ReminderCount())

	// Neither escalated nor reclassified here; that is the detector's job.
	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	for _, exec := range all {
		assert.Equal(t, model.ExecutionStatusPending, exec.Status)
		assert.Zero(t, exec.ReminderCount)
	}
}

func TestTickDispatchFailureStillRaisesCounter(t *testing.T) {
	e, store, dispatcher := newEscalator(t)
	ctx := context.Background()
	seedPending(t, store, 10)

	dispatcher.FailWith = &model.PermissionError{Op: "schedule reminder"}

	issued, err := e.Tick(ctx, at("08:35"))
	require.NoError(t, err)
	require.Len(t, issued, 1)

	// The counter is persisted even though delivery was refused, so the
	// next pass does not retry the same interval.
	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, all[0].ReminderCount)
}
