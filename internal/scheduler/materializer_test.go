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

const (
	monday  = "2025-03-03"
	tuesday = "2025-03-04"
)

func newMaterializer(t *testing.T) (*Materializer, *storage.MemoryStore, *testutil.RecordingDispatcher) {
	t.Helper()
	store := storage.NewMemoryStore()
	dispatcher := testutil.NewRecordingDispatcher()
	return NewMaterializer(store, dispatcher, time.UTC, zap.NewNop()), store, dispatcher
}

func TestMaterializeCreatesExecutions(t *testing.T) {
	m, store, dispatcher := newMaterializer(t)
	ctx := context.Background()

	task := testutil.NewTask("Take medicine", []string{"08:00", "20:00"}, []int{1, 3, 5}, 10)
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	created, err := m.Materialize(ctx, monday)
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, exec := range created {
		assert.Equal(t, task.ID, exec.TaskID)
		assert.Equal(t, monday, exec.Date)
		assert.Equal(t, model.ExecutionStatusPending, exec.Status)
		assert.Zero(t, exec.ReminderCount)
	}

	// Initial notifications requested once for the task.
	assert.Equal(t, []string{task.ID}, dispatcher.Initial)
}

func TestMaterializeIdempotent(t *testing.T) {
	m, store, _ := newMaterializer(t)
	ctx := context.Background()

	task := testutil.NewTask("Take medicine", []string{"08:00"}, []int{1}, 10)
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	first, err := m.Materialize(ctx, monday)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := m.Materialize(ctx, monday)
	require.NoError(t, err)
	assert.Empty(t, second)

	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMaterializeSkipsOffDays(t *testing.T) {
	m, store, _ := newMaterializer(t)
	ctx := context.Background()

	// Mon/Wed/Fri task on a Tuesday materializes nothing.
	task := testutil.NewTask("Take medicine", []string{"08:00"}, []int{1, 3, 5}, 10)
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	created, err := m.Materialize(ctx, tuesday)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestMaterializeSkipsInactiveTasks(t *testing.T) {
	m, store, _ := newMaterializer(t)
	ctx := context.Background()

	task := testutil.NewTask("Paused task", []string{"08:00"}, []int{1}, 10)
	task.IsActive = false
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	created, err := m.Materialize(ctx, monday)
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestMaterializeEditsAreForwardLooking(t *testing.T) {
	m, store, _ := newMaterializer(t)
	ctx := context.Background()

	task := testutil.NewTask("Take medicine", []string{"08:00"}, []int{1}, 10)
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	created, err := m.Materialize(ctx, monday)
	require.NoError(t, err)
	require.Len(t, created, 1)

	// Simulate progress on the existing execution before the edit.
	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	all[0].ReminderCount = 2
	require.NoError(t, store.SaveExecutions(ctx, all))

	// Add a time; rematerialization adds the new pair only.
	task.ScheduledTimes = []string{"08:00", "20:00"}
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	created, err = m.Materialize(ctx, monday)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "20:00", created[0].ScheduledTime)

	all, err = store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, exec := range all {
		if exec.ScheduledTime == "08:00" {
			assert.Equal(t, 2, exec.ReminderCount, "existing execution must not be touched")
		}
	}
}

func TestMaterializeNotificationFailureDoesNotRollBack(t *testing.T) {
	m, store, dispatcher := newMaterializer(t)
	ctx := context.Background()

	dispatcher.FailWith = &model.PermissionError{Op: "schedule initial notifications"}

	task := testutil.NewTask("Take medicine", []string{"08:00"}, []int{1}, 10)
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	created, err := m.Materialize(ctx, monday)
	require.NoError(t, err)
	require.Len(t, created, 1)

	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMaterializeInvalidDate(t *testing.T) {
	m, _, _ := newMaterializer(t)

	_, err := m.Materialize(context.Background(), "03/03/2025")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestMaterializeRange(t *testing.T) {
	m, store, _ := newMaterializer(t)
	ctx := context.Background()

	// Every day at 08:00.
	task := testutil.NewTask("Daily", []string{"08:00"}, []int{0, 1, 2, 3, 4, 5, 6}, 10)
	require.NoError(t, store.SaveTasks(ctx, []model.Task{task}))

	require.NoError(t, m.MaterializeRange(ctx, monday, 3))

	all, err := store.LoadExecutions(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	dates := map[string]bool{}
	for _, exec := range all {
		dates[exec.Date] = true
	}
	assert.True(t, dates["2025-03-03"])
	assert.True(t, dates["2025-03-04"])
	assert.True(t, dates["2025-03-05"])
}
