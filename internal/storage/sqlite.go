package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hokaccha/remindd/internal/model"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(logger *zap.Logger, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, &model.StorageError{Op: "open database", Err: err}
	}

	store := &SQLiteStore{
		logger: logger,
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			scheduled_times TEXT NOT NULL,
			days_of_week TEXT NOT NULL,
			reminder_minutes INTEGER NOT NULL,
			is_active INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			date TEXT NOT NULL,
			scheduled_time TEXT NOT NULL,
			status TEXT NOT NULL,
			completed_at DATETIME,
			reminder_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_executions_task_id ON executions(task_id);
		CREATE INDEX IF NOT EXISTS idx_executions_date ON executions(date);
		CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);
	`)
	if err != nil {
		return &model.StorageError{Op: "initialize database", Err: err}
	}
	return nil
}

// LoadTasks implements TaskStore.LoadTasks
func (s *SQLiteStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, scheduled_times, days_of_week, reminder_minutes, is_active, created_at, updated_at
		FROM tasks ORDER BY created_at`)
	if err != nil {
		return nil, &model.StorageError{Op: "load tasks", Err: err}
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var task model.Task
		var times, days string
		var active int
		if err := rows.Scan(&task.ID, &task.Name, &times, &days,
			&task.ReminderMinutes, &active, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, &model.StorageError{Op: "scan task", Err: err}
		}
		if err := json.Unmarshal([]byte(times), &task.ScheduledTimes); err != nil {
			return nil, &model.StorageError{Op: "decode scheduled times", Err: err}
		}
		if err := json.Unmarshal([]byte(days), &task.DaysOfWeek); err != nil {
			return nil, &model.StorageError{Op: "decode days of week", Err: err}
		}
		task.IsActive = active != 0
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "load tasks", Err: err}
	}
	return tasks, nil
}

// SaveTasks implements TaskStore.SaveTasks. The full collection is replaced
// in one transaction so a failed save leaves the previous state intact.
func (s *SQLiteStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StorageError{Op: "begin save tasks", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return &model.StorageError{Op: "clear tasks", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks (id, name, scheduled_times, days_of_week, reminder_minutes, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &model.StorageError{Op: "prepare save tasks", Err: err}
	}
	defer stmt.Close()

	for _, task := range tasks {
		times, err := json.Marshal(task.ScheduledTimes)
		if err != nil {
			return &model.StorageError{Op: "encode scheduled times", Err: err}
		}
		days, err := json.Marshal(task.DaysOfWeek)
		if err != nil {
			return &model.StorageError{Op: "encode days of week", Err: err}
		}
		active := 0
		if task.IsActive {
			active = 1
		}
		if _, err := stmt.ExecContext(ctx, task.ID, task.Name, string(times), string(days),
			task.ReminderMinutes, active, task.CreatedAt, task.UpdatedAt); err != nil {
			return &model.StorageError{Op: fmt.Sprintf("save task %s", task.ID), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &model.StorageError{Op: "commit save tasks", Err: err}
	}
	return nil
}

// LoadExecutions implements ExecutionStore.LoadExecutions
func (s *SQLiteStore) LoadExecutions(ctx context.Context, r *DateRange) ([]model.Execution, error) {
	query := `SELECT id, task_id, date, scheduled_time, status, completed_at, reminder_count FROM executions`
	args := make([]interface{}, 0, 2)
	if r != nil {
		query += " WHERE 1=1"
		if r.From != "" {
			query += " AND date >= ?"
			args = append(args, r.From)
		}
		if r.To != "" {
			query += " AND date <= ?"
			args = append(args, r.To)
		}
	}
	query += " ORDER BY date, scheduled_time"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &model.StorageError{Op: "load executions", Err: err}
	}
	defer rows.Close()

	var executions []model.Execution
	for rows.Next() {
		var exec model.Execution
		var completedAt sql.NullTime
		if err := rows.Scan(&exec.ID, &exec.TaskID, &exec.Date, &exec.ScheduledTime,
			&exec.Status, &completedAt, &exec.ReminderCount); err != nil {
			return nil, &model.StorageError{Op: "scan execution", Err: err}
		}
		if completedAt.Valid {
			t := completedAt.Time
			exec.CompletedAt = &t
		}
		executions = append(executions, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "load executions", Err: err}
	}
	return executions, nil
}

// SaveExecutions implements ExecutionStore.SaveExecutions with the same
// replace-in-transaction contract as SaveTasks.
func (s *SQLiteStore) SaveExecutions(ctx context.Context, executions []model.Execution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &model.StorageError{Op: "begin save executions", Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM executions"); err != nil {
		return &model.StorageError{Op: "clear executions", Err: err}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO executions (id, task_id, date, scheduled_time, status, completed_at, reminder_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return &model.StorageError{Op: "prepare save executions", Err: err}
	}
	defer stmt.Close()

	for _, exec := range executions {
		var completedAt sql.NullTime
		if exec.CompletedAt != nil {
			completedAt = sql.NullTime{Time: *exec.CompletedAt, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, exec.ID, exec.TaskID, exec.Date, exec.ScheduledTime,
			exec.Status, completedAt, exec.ReminderCount); err != nil {
			return &model.StorageError{Op: fmt.Sprintf("save execution %s", exec.ID), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &model.StorageError{Op: "commit save executions", Err: err}
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
