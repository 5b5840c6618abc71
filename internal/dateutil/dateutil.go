// Package dateutil maps between calendar-date strings, wall-clock times and
// instants. Dates are plain "2006-01-02" strings and times are "15:04"
// strings so day and weekday arithmetic never depends on a serialized
// timezone offset.
package dateutil

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// FormatDate renders the calendar date of t in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a calendar-date string at midnight in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// Combine resolves a date string plus an HH:MM time into an instant in loc.
func Combine(date, clock string, loc *time.Location) (time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, err
	}
	tod, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, loc), nil
}

// Weekday returns the weekday of a date string.
func Weekday(date string, loc *time.Location) (time.Weekday, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Sunday, err
	}
	return day.Weekday(), nil
}

// AddDays shifts a date string by n calendar days.
func AddDays(date string, n int, loc *time.Location) (string, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return "", err
	}
	return FormatDate(day.AddDate(0, 0, n)), nil
}
