package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/dateutil"
	"github.com/hokaccha/remindd/internal/model"
	"github.com/hokaccha/remindd/internal/notify"
	"github.com/hokaccha/remindd/internal/storage"
)

// Reminder pairs an execution with the escalation number that was issued for
// it during a tick.
type Reminder struct {
	Execution model.Execution
	Number    int
}

// Escalator re-derives reminder state from the wall clock on every tick.
// Because it only ever raises reminder counters and recomputes what is due
// from elapsed time, repeated or overlapping ticks converge to the same
// state; there is no timer to cancel and nothing to miss while the process
// was suspended.
type Escalator struct {
	logger     *zap.Logger
	store      storage.Store
	dispatcher notify.Dispatcher
	loc        *time.Location
}

// NewEscalator creates an escalator.
func NewEscalator(store storage.Store, dispatcher notify.Dispatcher, loc *time.Location, logger *zap.Logger) *Escalator {
	return &Escalator{
		logger:     logger.Named("escalator"),
		store:      store,
		dispatcher: dispatcher,
		loc:        loc,
	}
}

// Tick issues at most one reminder per due pending execution and persists the
// raised counters. A long suspension collapses all skipped intervals into a
// single counter jump with a single notification, never a storm.
func (e *Escalator) Tick(ctx context.Context, now time.Time) ([]Reminder, error) {
	tasks, err := e.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	taskByID := make(map[string]*model.Task, len(tasks))
	for i := range tasks {
		taskByID[tasks[i].ID] = &tasks[i]
	}

	executions, err := e.store.LoadExecutions(ctx, nil)
	if err != nil {
		return nil, err
	}

	var issued []Reminder
	dirty := false
	for i := range executions {
		exec := &executions[i]
		if exec.Status != model.ExecutionStatusPending {
			continue
		}

		// An orphaned or deactivated execution never escalates further,
		// but reclassifying it is the missed detector's job, not ours.
		task, ok := taskByID[exec.TaskID]
		if !ok || !task.IsActive {
			continue
		}

		scheduledAt, err := dateutil.Combine(exec.Date, exec.ScheduledTime, e.loc)
		if err != nil {
			e.logger.Warn("Skipping execution with unparsable schedule",
				zap.String("execution_id", exec.ID),
				zap.Error(err))
			continue
		}

		elapsed := now.Sub(scheduledAt)
		if elapsed <= 0 {
			continue
		}

		due := int(elapsed / task.ReminderInterval())
		if due <= exec.ReminderCount {
			continue
		}

		exec.ReminderCount = due
		dirty = true
		issued = append(issued, Reminder{Execution: *exec, Number: due})

		if _, err := e.dispatcher.ScheduleReminder(ctx, exec, task.Name, task.ReminderMinutes); err != nil {
			e.logger.Warn("Failed to schedule reminder",
				zap.String("execution_id", exec.ID),
				zap.String("task_name", task.Name),
				zap.Error(err))
		}
	}

	if dirty {
		if err := e.store.SaveExecutions(ctx, executions); err != nil {
			return issued, err
		}
	}

	if len(issued) > 0 {
		e.logger.Info("Escalated reminders", zap.Int("count", len(issued)))
	}
	return issued, nil
}
