package model

import (
	"fmt"
	"time"
)

// Task represents a recurring task definition. The schedule fields describe
// when executions are materialized; edits are forward-looking only and never
// rewrite executions that already exist.
type Task struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ScheduledTimes  []string  `json:"scheduled_times"` // HH:MM wall-clock times
	DaysOfWeek      []int     `json:"days_of_week"`    // 0=Sunday .. 6=Saturday
	ReminderMinutes int       `json:"reminder_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks a task definition before it is stored or materialized.
func (t *Task) Validate() error {
	if t.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if len(t.ScheduledTimes) == 0 {
		return &ValidationError{Field: "scheduled_times", Reason: "at least one time is required"}
	}
	seen := make(map[string]bool, len(t.ScheduledTimes))
	for _, st := range t.ScheduledTimes {
		if _, err := time.Parse("15:04", st); err != nil {
			return &ValidationError{Field: "scheduled_times", Reason: fmt.Sprintf("invalid time %q, expected HH:MM", st)}
		}
		if seen[st] {
			return &ValidationError{Field: "scheduled_times", Reason: fmt.Sprintf("duplicate time %q", st)}
		}
		seen[st] = true
	}
	if len(t.DaysOfWeek) == 0 {
		return &ValidationError{Field: "days_of_week", Reason: "at least one day is required"}
	}
	seenDay := make(map[int]bool, len(t.DaysOfWeek))
	for _, d := range t.DaysOfWeek {
		if d < 0 || d > 6 {
			return &ValidationError{Field: "days_of_week", Reason: fmt.Sprintf("invalid day %d, expected 0 (Sunday) through 6 (Saturday)", d)}
		}
		if seenDay[d] {
			return &ValidationError{Field: "days_of_week", Reason: fmt.Sprintf("duplicate day %d", d)}
		}
		seenDay[d] = true
	}
	if t.ReminderMinutes <= 0 {
		return &ValidationError{Field: "reminder_minutes", Reason: "must be a positive number of minutes"}
	}
	return nil
}

// ScheduledOn reports whether the task recurs on the given weekday.
func (t *Task) ScheduledOn(day time.Weekday) bool {
	for _, d := range t.DaysOfWeek {
		if d == int(day) {
			return true
		}
	}
	return false
}

// ReminderInterval returns the escalation cadence as a duration.
func (t *Task) ReminderInterval() time.Duration {
	return time.Duration(t.ReminderMinutes) * time.Minute
}
