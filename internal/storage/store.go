package storage

import (
	"context"

	"github.com/hokaccha/remindd/internal/model"
)

// DateRange bounds an execution query by calendar date, inclusive on both
// ends. Date strings compare correctly as strings ("2006-01-02").
type DateRange struct {
	From string
	To   string
}

// Contains reports whether date falls inside the range. An empty bound is
// open on that side.
func (r DateRange) Contains(date string) bool {
	if r.From != "" && date < r.From {
		return false
	}
	if r.To != "" && date > r.To {
		return false
	}
	return true
}

// TaskStore persists task definitions with whole-collection replace
// semantics: SaveTasks overwrites the full set, last write wins.
type TaskStore interface {
	LoadTasks(ctx context.Context) ([]model.Task, error)
	SaveTasks(ctx context.Context, tasks []model.Task) error
}

// ExecutionStore persists executions with the same whole-collection replace
// semantics. LoadExecutions with a nil range returns everything.
type ExecutionStore interface {
	LoadExecutions(ctx context.Context, r *DateRange) ([]model.Execution, error)
	SaveExecutions(ctx context.Context, executions []model.Execution) error
}

// Store combines both collections behind one collaborator.
type Store interface {
	TaskStore
	ExecutionStore
}
