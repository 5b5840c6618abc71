package model

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when a task is not found
	ErrTaskNotFound = errors.New("task not found")

	// ErrExecutionNotFound is returned when an execution is not found
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrPermissionDenied is returned when notification permission is absent
	ErrPermissionDenied = errors.New("notification permission denied")
)

// StorageError wraps a persistence failure. Batch components log it for the
// affected record and keep going; callers of single-record operations get it
// back unwrapped-able via errors.As.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotFoundError reports an operation that referenced an id that does not
// exist. It wraps the matching sentinel so errors.Is works on both.
type NotFoundError struct {
	Kind string // "task" or "execution"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Kind == "task" {
		return ErrTaskNotFound
	}
	return ErrExecutionNotFound
}

// PermissionError reports that the notification permission gate refused an
// operation. Scheduling is skipped, not retried.
type PermissionError struct {
	Op string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrPermissionDenied)
}

func (e *PermissionError) Unwrap() error { return ErrPermissionDenied }

// ValidationError reports a malformed task definition or an invalid state
// transition. Rejected before anything is persisted or materialized.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
