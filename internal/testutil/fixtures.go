package testutil

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/model"
	"github.com/hokaccha/remindd/internal/notify"
	"github.com/hokaccha/remindd/internal/storage"
)

// NewSQLiteStore opens a SQLite store in a temp directory.
func NewSQLiteStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(zap.NewNop(), filepath.Join(t.TempDir(), "remindd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// NewTask builds a valid active task with the given schedule.
func NewTask(name string, times []string, days []int, reminderMinutes int) model.Task {
	now := time.Now()
	return model.Task{
		ID:              uuid.New().String(),
		Name:            name,
		ScheduledTimes:  times,
		DaysOfWeek:      days,
		ReminderMinutes: reminderMinutes,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// RecordingDispatcher is a notify.Dispatcher that records calls instead of
// publishing anywhere. FailWith, when set, is returned from the schedule
// methods.
type RecordingDispatcher struct {
	mu        sync.Mutex
	Initial   []string // task ids passed to ScheduleInitial
	Reminders []model.Notification
	Cancelled []string // task ids
	CancExecs []string // execution ids
	FailWith  error
}

// NewRecordingDispatcher creates an empty recorder.
func NewRecordingDispatcher() *RecordingDispatcher {
	return &RecordingDispatcher{}
}

// ScheduleInitial implements notify.Dispatcher.ScheduleInitial
func (d *RecordingDispatcher) ScheduleInitial(ctx context.Context, task *model.Task) ([]model.NotificationHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWith != nil {
		return nil, d.FailWith
	}
	d.Initial = append(d.Initial, task.ID)
	var handles []model.NotificationHandle
	for range task.DaysOfWeek {
		for range task.ScheduledTimes {
			handles = append(handles, model.NotificationHandle{ID: uuid.New().String(), TaskID: task.ID})
		}
	}
	return handles, nil
}

// ScheduleReminder implements notify.Dispatcher.ScheduleReminder
func (d *RecordingDispatcher) ScheduleReminder(ctx context.Context, execution *model.Execution, taskName string, intervalMinutes int) (model.NotificationHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailWith != nil {
		return model.NotificationHandle{}, d.FailWith
	}
	d.Reminders = append(d.Reminders, model.Notification{
		ID:             uuid.New().String(),
		TaskID:         execution.TaskID,
		ExecutionID:    execution.ID,
		TaskName:       taskName,
		Type:           model.NotificationTypeReminder,
		ReminderNumber: execution.ReminderCount,
		ScheduledTime:  execution.ScheduledTime,
		CreatedAt:      time.Now(),
	})
	return model.NotificationHandle{ID: uuid.New().String(), TaskID: execution.TaskID}, nil
}

// Cancel implements notify.Dispatcher.Cancel
func (d *RecordingDispatcher) Cancel(ctx context.Context, taskID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Cancelled = append(d.Cancelled, taskID)
	return nil
}

// CancelExecution implements notify.Dispatcher.CancelExecution
func (d *RecordingDispatcher) CancelExecution(ctx context.Context, executionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CancExecs = append(d.CancExecs, executionID)
	return nil
}

// ReminderCount returns how many reminders were recorded.
func (d *RecordingDispatcher) ReminderCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Reminders)
}

var _ notify.Dispatcher = (*RecordingDispatcher)(nil)
