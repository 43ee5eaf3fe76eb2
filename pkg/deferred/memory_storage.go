package deferred

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStorage keeps tasks in process memory. Intended for tests and
// single-node development setups.
type MemoryStorage struct {
	mu    sync.Mutex
	tasks []Task
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Add(_ context.Context, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	return nil
}

func (s *MemoryStorage) ClaimDue(_ context.Context, now time.Time, limit int) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Task
	var remaining []Task
	for _, task := range s.tasks {
		if !task.RunAt.After(now) {
			due = append(due, task)
		} else {
			remaining = append(remaining, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if limit > 0 && len(due) > limit {
		remaining = append(remaining, due[limit:]...)
		due = due[:limit]
	}
	s.tasks = remaining
	return due, nil
}

// Len reports the number of stored tasks.
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
