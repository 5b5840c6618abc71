package storage

import (
	"context"
	"sync"

	"github.com/hokaccha/remindd/internal/model"
)

// MemoryStore is an in-memory Store with the same whole-collection replace
// contract as the SQLite implementation. Used in tests and as a fallback when
// no database path is configured.
type MemoryStore struct {
	mu         sync.RWMutex
	tasks      []model.Task
	executions []model.Execution
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadTasks implements TaskStore.LoadTasks
func (s *MemoryStore) LoadTasks(ctx context.Context) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, len(s.tasks))
	copy(out, s.tasks)
	return out, nil
}

// SaveTasks implements TaskStore.SaveTasks
func (s *MemoryStore) SaveTasks(ctx context.Context, tasks []model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make([]model.Task, len(tasks))
	copy(s.tasks, tasks)
	return nil
}

// LoadExecutions implements ExecutionStore.LoadExecutions
func (s *MemoryStore) LoadExecutions(ctx context.Context, r *DateRange) ([]model.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Execution
	for _, exec := range s.executions {
		if r == nil || r.Contains(exec.Date) {
			out = append(out, exec)
		}
	}
	return out, nil
}

// SaveExecutions implements ExecutionStore.SaveExecutions
func (s *MemoryStore) SaveExecutions(ctx context.Context, executions []model.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = make([]model.Execution, len(executions))
	copy(s.executions, executions)
	return nil
}

var _ Store = (*MemoryStore)(nil)
