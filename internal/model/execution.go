package model

import "time"

// ExecutionStatus represents the current status of an execution
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusMissed    ExecutionStatus = "missed"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusMissed
}

// Execution is one concrete, dated occurrence of a task. ScheduledTime is
// copied from the task at materialization so later edits to the task do not
// retroactively alter past instances.
type Execution struct {
	ID            string          `json:"id"`
	TaskID        string          `json:"task_id"`
	Date          string          `json:"date"`           // calendar date, 2006-01-02
	ScheduledTime string          `json:"scheduled_time"` // HH:MM
	Status        ExecutionStatus `json:"status"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	ReminderCount int             `json:"reminder_count"`
}

// Complete transitions a pending execution to completed. Completing an
// already-completed execution is a no-op success so re-entrant user taps do
// not fail. Missed is terminal and stays terminal.
func (e *Execution) Complete(now time.Time) error {
	switch e.Status {
	case ExecutionStatusCompleted:
		return nil
	case ExecutionStatusMissed:
		return &ValidationError{Field: "status", Reason: "execution was already marked missed"}
	}
	e.Status = ExecutionStatusCompleted
	t := now
	e.CompletedAt = &t
	return nil
}

// MarkMissed transitions a pending execution to missed. Terminal statuses are
// left untouched.
func (e *Execution) MarkMissed() bool {
	if e.Status != ExecutionStatusPending {
		return false
	}
	e.Status = ExecutionStatusMissed
	return true
}
