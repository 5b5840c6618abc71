package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/dateutil"
	"github.com/hokaccha/remindd/internal/model"
	"github.com/hokaccha/remindd/internal/notify"
	"github.com/hokaccha/remindd/internal/scheduler"
	"github.com/hokaccha/remindd/internal/storage"
)

// CreateTaskParams carries the user-supplied fields of a new task.
type CreateTaskParams struct {
	Name            string
	ScheduledTimes  []string
	DaysOfWeek      []int
	ReminderMinutes int
	IsActive        bool
}

// UpdateTaskParams carries a partial task update; nil fields are left
// untouched.
type UpdateTaskParams struct {
	Name            *string
	ScheduledTimes  []string
	DaysOfWeek      []int
	ReminderMinutes *int
	IsActive        *bool
}

// TaskService owns task definitions and the user-driven completion
// transition. Materialization after create/update goes through the same
// materializer the coordinator uses, so the add-only reconciliation rules
// hold no matter who triggered it.
type TaskService struct {
	logger       *zap.Logger
	store        storage.Store
	dispatcher   notify.Dispatcher
	materializer *scheduler.Materializer
	loc          *time.Location
	now          func() time.Time
}

// NewTaskService creates a task service.
func NewTaskService(store storage.Store, dispatcher notify.Dispatcher, materializer *scheduler.Materializer, loc *time.Location, logger *zap.Logger) *TaskService {
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{
		logger:       logger.Named("tasks"),
		store:        store,
		dispatcher:   dispatcher,
		materializer: materializer,
		loc:          loc,
		now:          time.Now,
	}
}

// WithClock overrides the service clock. Tests only.
func (s *TaskService) WithClock(now func() time.Time) *TaskService {
	s.now = now
	return s
}

// CreateTask validates and stores a new task, then materializes today's
// executions for it. Validation failures reject the task before anything is
// persisted.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (*model.Task, error) {
	now := s.now()
	task := model.Task{
		ID:              uuid.New().String(),
		Name:            params.Name,
		ScheduledTimes:  params.ScheduledTimes,
		DaysOfWeek:      params.DaysOfWeek,
		ReminderMinutes: params.ReminderMinutes,
		IsActive:        params.IsActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveTasks(ctx, append(tasks, task)); err != nil {
		return nil, err
	}

	s.logger.Info("Created task",
		zap.String("task_id", task.ID),
		zap.String("name", task.Name))

	s.materializeToday(ctx)
	return &task, nil
}

// UpdateTask applies a partial update. Schedule edits are forward-looking:
// rematerialization adds executions for new (day, time) pairs but never
// rewrites existing ones.
func (s *TaskService) UpdateTask(ctx context.Context, id string, params UpdateTaskParams) (*model.Task, error) {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range tasks {
		if tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, &model.NotFoundError{Kind: "task", ID: id}
	}

	task := tasks[idx]
	if params.Name != nil {
		task.Name = *params.Name
	}
	if params.ScheduledTimes != nil {
		task.ScheduledTimes = params.ScheduledTimes
	}
	if params.DaysOfWeek != nil {
		task.DaysOfWeek = params.DaysOfWeek
	}
	if params.ReminderMinutes != nil {
		task.ReminderMinutes = *params.ReminderMinutes
	}
	if params.IsActive != nil {
		task.IsActive = *params.IsActive
	}
	task.UpdatedAt = s.now()

	if err := task.Validate(); err != nil {
		return nil, err
	}

	tasks[idx] = task
	if err := s.store.SaveTasks(ctx, tasks); err != nil {
		return nil, err
	}

	s.logger.Info("Updated task", zap.String("task_id", id))

	s.materializeToday(ctx)
	return &task, nil
}

// DeleteTask removes the task, every execution that belongs to it, and its
// scheduled notifications.
func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return err
	}

	kept := tasks[:0]
	found := false
	for _, task := range tasks {
		if task.ID == id {
			found = true
			continue
		}
		kept = append(kept, task)
	}
	if !found {
		return &model.NotFoundError{Kind: "task", ID: id}
	}

	if err := s.store.SaveTasks(ctx, kept); err != nil {
		return err
	}

	executions, err := s.store.LoadExecutions(ctx, nil)
	if err != nil {
		return err
	}
	keptExecs := executions[:0]
	for _, exec := range executions {
		if exec.TaskID != id {
			keptExecs = append(keptExecs, exec)
		}
	}
	if err := s.store.SaveExecutions(ctx, keptExecs); err != nil {
		return err
	}

	if err := s.dispatcher.Cancel(ctx, id); err != nil {
		s.logger.Warn("Failed to cancel notifications for deleted task",
			zap.String("task_id", id),
			zap.Error(err))
	}

	s.logger.Info("Deleted task", zap.String("task_id", id))
	return nil
}

// GetTasks returns all tasks.
func (s *TaskService) GetTasks(ctx context.Context) ([]model.Task, error) {
	return s.store.LoadTasks(ctx)
}

// GetTaskByID returns one task or a NotFoundError.
func (s *TaskService) GetTaskByID(ctx context.Context, id string) (*model.Task, error) {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}
	return nil, &model.NotFoundError{Kind: "task", ID: id}
}

// ExecutionsForDate returns the executions materialized for one date.
func (s *TaskService) ExecutionsForDate(ctx context.Context, date string) ([]model.Execution, error) {
	return s.store.LoadExecutions(ctx, &storage.DateRange{From: date, To: date})
}

// TodayExecutions returns today's executions.
func (s *TaskService) TodayExecutions(ctx context.Context) ([]model.Execution, error) {
	return s.ExecutionsForDate(ctx, dateutil.FormatDate(s.now().In(s.loc)))
}

// PendingExecutions returns every execution still pending, any date.
func (s *TaskService) PendingExecutions(ctx context.Context) ([]model.Execution, error) {
	executions, err := s.store.LoadExecutions(ctx, nil)
	if err != nil {
		return nil, err
	}
	var pending []model.Execution
	for _, exec := range executions {
		if exec.Status == model.ExecutionStatusPending {
			pending = append(pending, exec)
		}
	}
	return pending, nil
}

// Complete marks an execution completed. Unknown ids surface a NotFoundError;
// completing an already-completed execution is a no-op success, and the
// CompletedAt of the first completion wins. Reminders stop because the
// escalator only considers pending executions, but the dispatcher's own
// scheduled entries for the execution are cancelled too so a stale one cannot
// fire.
func (s *TaskService) Complete(ctx context.Context, executionID string) error {
	executions, err := s.store.LoadExecutions(ctx, nil)
	if err != nil {
		return err
	}

	idx := -1
	for i := range executions {
		if executions[i].ID == executionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &model.NotFoundError{Kind: "execution", ID: executionID}
	}

	already := executions[idx].Status == model.ExecutionStatusCompleted
	if err := executions[idx].Complete(s.now()); err != nil {
		return err
	}
	if already {
		return nil
	}

	if err := s.store.SaveExecutions(ctx, executions); err != nil {
		return err
	}

	if err := s.dispatcher.CancelExecution(ctx, executionID); err != nil {
		s.logger.Warn("Failed to cancel execution notifications",
			zap.String("execution_id", executionID),
			zap.Error(err))
	}

	s.logger.Info("Completed execution", zap.String("execution_id", executionID))
	return nil
}

// materializeToday is best-effort after task writes; the next lifecycle pass
// repairs anything it missed.
func (s *TaskService) materializeToday(ctx context.Context) {
	today := dateutil.FormatDate(s.now().In(s.loc))
	if _, err := s.materializer.Materialize(ctx, today); err != nil {
		s.logger.Warn("Failed to materialize after task change",
			zap.String("date", today),
			zap.Error(err))
	}
}
