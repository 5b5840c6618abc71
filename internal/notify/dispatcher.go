package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/model"
)

const (
	streamName          = "NOTIFICATIONS"
	subjectInitial      = "notify.initial"
	subjectReminder     = "notify.reminder"
	subjectCancel       = "notify.cancel"
	subjectCancelByExec = "notify.cancel_execution"
)

// Dispatcher is the notification collaborator consumed by the scheduling
// core. All scheduling is best-effort: the core logs failures and keeps
// going.
type Dispatcher interface {
	// ScheduleInitial registers the repeating day-of-week notifications for a task.
	ScheduleInitial(ctx context.Context, task *model.Task) ([]model.NotificationHandle, error)

	// ScheduleReminder issues one escalation reminder for a pending execution.
	ScheduleReminder(ctx context.Context, execution *model.Execution, taskName string, intervalMinutes int) (model.NotificationHandle, error)

	// Cancel drops every scheduled notification belonging to a task.
	Cancel(ctx context.Context, taskID string) error

	// CancelExecution drops scheduled entries for a single execution so a
	// completed execution cannot produce a stale reminder.
	CancelExecution(ctx context.Context, executionID string) error
}

// cancelRequest is the payload published on the cancel subjects.
type cancelRequest struct {
	TaskID      string `json:"task_id,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
}

// JetStreamDispatcher publishes notification events to a JetStream stream.
// Delivery to the user (push gateway, email relay) is handled by consumers of
// the notify.* subjects; the dispatcher only guarantees the event is durable.
type JetStreamDispatcher struct {
	logger  *zap.Logger
	js      nats.JetStreamContext
	gate    PermissionGate
	handles sync.Map // taskID -> []model.NotificationHandle
}

// NewJetStreamDispatcher creates a dispatcher over the given JetStream context.
func NewJetStreamDispatcher(js nats.JetStreamContext, gate PermissionGate, logger *zap.Logger) *JetStreamDispatcher {
	return &JetStreamDispatcher{
		logger: logger.Named("dispatcher"),
		js:     js,
		gate:   gate,
	}
}

// Start ensures the notification stream exists.
func (d *JetStreamDispatcher) Start(ctx context.Context) error {
	_, err := d.js.StreamInfo(streamName)
	if err != nil {
		if err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to get stream info: %w", err)
		}

		_, err = d.js.AddStream(&nats.StreamConfig{
			Name:     streamName,
			Subjects: []string{"notify.*"},
			Storage:  nats.FileStorage,
			MaxAge:   7 * 24 * time.Hour,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		d.logger.Info("Created notification stream", zap.String("name", streamName))
	} else {
		d.logger.Info("Using existing notification stream", zap.String("name", streamName))
	}

	return nil
}

// ScheduleInitial implements Dispatcher.ScheduleInitial
func (d *JetStreamDispatcher) ScheduleInitial(ctx context.Context, task *model.Task) ([]model.NotificationHandle, error) {
	if !d.gate.HasPermission(ctx) {
		return nil, &model.PermissionError{Op: "schedule initial notifications"}
	}

	var handles []model.NotificationHandle
	for _, day := range task.DaysOfWeek {
		for _, scheduledTime := range task.ScheduledTimes {
			notification := model.Notification{
				ID:            uuid.New().String(),
				TaskID:        task.ID,
				TaskName:      task.Name,
				Type:          model.NotificationTypeInitial,
				ScheduledTime: scheduledTime,
				DayOfWeek:     day,
				CreatedAt:     time.Now(),
			}

			if err := d.publish(subjectInitial, notification); err != nil {
				return handles, err
			}
			handles = append(handles, model.NotificationHandle{ID: notification.ID, TaskID: task.ID})
		}
	}

	d.track(task.ID, handles)

	d.logger.Info("Scheduled initial notifications",
		zap.String("task_id", task.ID),
		zap.String("task_name", task.Name),
		zap.Int("count", len(handles)))

	return handles, nil
}

// ScheduleReminder implements Dispatcher.ScheduleReminder
func (d *JetStreamDispatcher) ScheduleReminder(ctx context.Context, execution *model.Execution, taskName string, intervalMinutes int) (model.NotificationHandle, error) {
	if !d.gate.HasPermission(ctx) {
		return model.NotificationHandle{}, &model.PermissionError{Op: "schedule reminder"}
	}

	notification := model.Notification{
		ID:             uuid.New().String(),
		TaskID:         execution.TaskID,
		ExecutionID:    execution.ID,
		TaskName:       taskName,
		Type:           model.NotificationTypeReminder,
		ReminderNumber: execution.ReminderCount,
		ScheduledTime:  execution.ScheduledTime,
		CreatedAt:      time.Now(),
	}

	if err := d.publish(subjectReminder, notification); err != nil {
		return model.NotificationHandle{}, err
	}

	handle := model.NotificationHandle{ID: notification.ID, TaskID: execution.TaskID}
	d.track(execution.TaskID, []model.NotificationHandle{handle})

	d.logger.Info("Scheduled reminder",
		zap.String("task_name", taskName),
		zap.String("execution_id", execution.ID),
		zap.Int("reminder_number", execution.ReminderCount))

	return handle, nil
}

// Cancel implements Dispatcher.Cancel
func (d *JetStreamDispatcher) Cancel(ctx context.Context, taskID string) error {
	if err := d.publish(subjectCancel, cancelRequest{TaskID: taskID}); err != nil {
		return err
	}
	d.handles.Delete(taskID)
	d.logger.Info("Cancelled notifications", zap.String("task_id", taskID))
	return nil
}

// CancelExecution implements Dispatcher.CancelExecution
func (d *JetStreamDispatcher) CancelExecution(ctx context.Context, executionID string) error {
	if err := d.publish(subjectCancelByExec, cancelRequest{ExecutionID: executionID}); err != nil {
		return err
	}
	d.logger.Debug("Cancelled execution notifications", zap.String("execution_id", executionID))
	return nil
}

// Handles returns the tracked handles for a task. Mostly useful in tests.
func (d *JetStreamDispatcher) Handles(taskID string) []model.NotificationHandle {
	val, ok := d.handles.Load(taskID)
	if !ok {
		return nil
	}
	return val.([]model.NotificationHandle)
}

func (d *JetStreamDispatcher) track(taskID string, handles []model.NotificationHandle) {
	existing := d.Handles(taskID)
	d.handles.Store(taskID, append(existing, handles...))
}

func (d *JetStreamDispatcher) publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if _, err := d.js.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

var _ Dispatcher = (*JetStreamDispatcher)(nil)
