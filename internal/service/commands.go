package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// CommandListener exposes task operations over NATS so clients (mobile app
// backend, CLI) can drive the service without linking it. One subject per
// operation under cmd.>.
type CommandListener struct {
	logger *zap.Logger
	js     nats.JetStreamContext
	tasks  *TaskService
	subs   []*nats.Subscription
}

// updateCommand is the payload for cmd.task.update.
type updateCommand struct {
	ID     string           `json:"id"`
	Update UpdateTaskParams `json:"update"`
}

// idCommand is the payload for delete and complete commands.
type idCommand struct {
	ID string `json:"id"`
}

// createCommand is the payload for cmd.task.create.
type createCommand struct {
	Name            string   `json:"name"`
	ScheduledTimes  []string `json:"scheduled_times"`
	DaysOfWeek      []int    `json:"days_of_week"`
	ReminderMinutes int      `json:"reminder_minutes"`
	IsActive        bool     `json:"is_active"`
}

// NewCommandListener creates a command listener for the task service.
func NewCommandListener(js nats.JetStreamContext, tasks *TaskService, logger *zap.Logger) *CommandListener {
	return &CommandListener{
		logger: logger.Named("commands"),
		js:     js,
		tasks:  tasks,
	}
}

// Start ensures the command stream exists and subscribes to the task
// command subjects with durable consumers.
func (l *CommandListener) Start(ctx context.Context) error {
	_, err := l.js.StreamInfo("COMMANDS")
	if err != nil {
		if err != nats.ErrStreamNotFound {
			return fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = l.js.AddStream(&nats.StreamConfig{
			Name:     "COMMANDS",
			Subjects: []string{"cmd.>"},
			Storage:  nats.FileStorage,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if err := l.subscribe(ctx, "cmd.task.create", "task-create-consumer", l.handleCreate); err != nil {
		return err
	}
	if err := l.subscribe(ctx, "cmd.task.update", "task-update-consumer", l.handleUpdate); err != nil {
		return err
	}
	if err := l.subscribe(ctx, "cmd.task.delete", "task-delete-consumer", l.handleDelete); err != nil {
		return err
	}
	if err := l.subscribe(ctx, "cmd.execution.complete", "execution-complete-consumer", l.handleComplete); err != nil {
		return err
	}

	l.logger.Info("Command listener started")
	return nil
}

// Stop unsubscribes from all command subjects.
func (l *CommandListener) Stop() {
	for _, sub := range l.subs {
		sub.Unsubscribe()
	}
	l.subs = nil
}

func (l *CommandListener) subscribe(ctx context.Context, subject, durable string, handler func(context.Context, *nats.Msg)) error {
	sub, err := l.js.Subscribe(subject, func(msg *nats.Msg) {
		handler(ctx, msg)
	}, nats.Durable(durable))
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	l.subs = append(l.subs, sub)
	return nil
}

func (l *CommandListener) handleCreate(ctx context.Context, msg *nats.Msg) {
	var cmd createCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		l.logger.Error("Failed to unmarshal create command", zap.Error(err))
		return
	}

	task, err := l.tasks.CreateTask(ctx, CreateTaskParams{
		Name:            cmd.Name,
		ScheduledTimes:  cmd.ScheduledTimes,
		DaysOfWeek:      cmd.DaysOfWeek,
		ReminderMinutes: cmd.ReminderMinutes,
		IsActive:        cmd.IsActive,
	})
	if err != nil {
		l.logger.Error("Failed to create task", zap.String("name", cmd.Name), zap.Error(err))
		return
	}
	l.logger.Info("Created task via command", zap.String("task_id", task.ID))
}

func (l *CommandListener) handleUpdate(ctx context.Context, msg *nats.Msg) {
	var cmd updateCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		l.logger.Error("Failed to unmarshal update command", zap.Error(err))
		return
	}

	if _, err := l.tasks.UpdateTask(ctx, cmd.ID, cmd.Update); err != nil {
		l.logger.Error("Failed to update task", zap.String("task_id", cmd.ID), zap.Error(err))
	}
}

func (l *CommandListener) handleDelete(ctx context.Context, msg *nats.Msg) {
	var cmd idCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		l.logger.Error("Failed to unmarshal delete command", zap.Error(err))
		return
	}

	if err := l.tasks.DeleteTask(ctx, cmd.ID); err != nil {
		l.logger.Error("Failed to delete task", zap.String("task_id", cmd.ID), zap.Error(err))
	}
}

func (l *CommandListener) handleComplete(ctx context.Context, msg *nats.Msg) {
	var cmd idCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		l.logger.Error("Failed to unmarshal complete command", zap.Error(err))
		return
	}

	if err := l.tasks.Complete(ctx, cmd.ID); err != nil {
		l.logger.Error("Failed to complete execution", zap.String("execution_id", cmd.ID), zap.Error(err))
	}
}
