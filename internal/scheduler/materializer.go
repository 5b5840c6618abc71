package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/dateutil"
	"github.com/hokaccha/remindd/internal/model"
	"github.com/hokaccha/remindd/internal/notify"
	"github.com/hokaccha/remindd/internal/storage"
)

// Materializer turns active task definitions into dated executions. It is
// idempotent per date: re-invocation never creates duplicates and never
// touches the status or reminder counter of an existing execution. Task edits
// reconcile forward only, adding executions for newly-introduced (day, time)
// pairs without rewriting what already exists.
type Materializer struct {
	logger     *zap.Logger
	store      storage.Store
	dispatcher notify.Dispatcher
	loc        *time.Location
}

// NewMaterializer creates a materializer.
func NewMaterializer(store storage.Store, dispatcher notify.Dispatcher, loc *time.Location, logger *zap.Logger) *Materializer {
	return &Materializer{
		logger:     logger.Named("materializer"),
		store:      store,
		dispatcher: dispatcher,
		loc:        loc,
	}
}

// Materialize ensures every execution that should exist for the date does,
// and returns only the newly created ones. Storage failures abort the whole
// date with no partial writes.
func (m *Materializer) Materialize(ctx context.Context, date string) ([]model.Execution, error) {
	weekday, err := dateutil.Weekday(date, m.loc)
	if err != nil {
		return nil, &model.ValidationError{Field: "date", Reason: err.Error()}
	}

	tasks, err := m.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}

	all, err := m.store.LoadExecutions(ctx, nil)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]bool)
	for _, exec := range all {
		if exec.Date == date {
			existing[exec.TaskID+"|"+exec.ScheduledTime] = true
		}
	}

	var created []model.Execution
	tasksWithNew := make(map[string]*model.Task)
	for i := range tasks {
		task := &tasks[i]
		if !task.IsActive || !task.ScheduledOn(weekday) {
			continue
		}
		for _, scheduledTime := range task.ScheduledTimes {
			if existing[task.ID+"|"+scheduledTime] {
				continue
			}
			created = append(created, model.Execution{
				ID:            uuid.New().String(),
				TaskID:        task.ID,
				Date:          date,
				ScheduledTime: scheduledTime,
				Status:        model.ExecutionStatusPending,
			})
			tasksWithNew[task.ID] = task
		}
	}

	if len(created) == 0 {
		return nil, nil
	}

	if err := m.store.SaveExecutions(ctx, append(all, created...)); err != nil {
		return nil, err
	}

	m.logger.Info("Materialized executions",
		zap.String("date", date),
		zap.Int("created", len(created)))

	// Initial notification scheduling is best-effort and never rolls back
	// the executions it belongs to.
	for _, task := range tasksWithNew {
		if _, err := m.dispatcher.ScheduleInitial(ctx, task); err != nil {
			m.logger.Warn("Failed to schedule initial notifications",
				zap.String("task_id", task.ID),
				zap.String("task_name", task.Name),
				zap.Error(err))
		}
	}

	return created, nil
}

// MaterializeRange materializes every date from start for n consecutive days,
// for callers that want more look-ahead than the rollover's single next day.
func (m *Materializer) MaterializeRange(ctx context.Context, start string, n int) error {
	date := start
	for i := 0; i < n; i++ {
		if _, err := m.Materialize(ctx, date); err != nil {
			return fmt.Errorf("materialize %s: %w", date, err)
		}
		next, err := dateutil.AddDays(date, 1, m.loc)
		if err != nil {
			return err
		}
		date = next
	}
	return nil
}

// storageFailure reports whether err is a per-record failure the batch
// components swallow and log rather than abort on.
func storageFailure(err error) bool {
	var serr *model.StorageError
	var perr *model.PermissionError
	return errors.As(err, &serr) || errors.As(err, &perr)
}
