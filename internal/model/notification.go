package model

import "time"

// NotificationType represents the type of notification
type NotificationType string

const (
	NotificationTypeInitial  NotificationType = "initial"
	NotificationTypeReminder NotificationType = "reminder"
)

// Notification is one reminder event handed to the dispatch collaborator.
// ReminderNumber is 0 for the initial notification and the escalation counter
// value for reminders.
type Notification struct {
	ID             string           `json:"id"`
	TaskID         string           `json:"task_id"`
	ExecutionID    string           `json:"execution_id,omitempty"`
	TaskName       string           `json:"task_name"`
	Type           NotificationType `json:"type"`
	ReminderNumber int              `json:"reminder_number,omitempty"`
	ScheduledTime  string           `json:"scheduled_time,omitempty"` // HH:MM
	DayOfWeek      int              `json:"day_of_week,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// NotificationHandle identifies a scheduled notification at the dispatcher so
// it can be cancelled later.
type NotificationHandle struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
}
