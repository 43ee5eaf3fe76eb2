package deferred

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task is one scheduled side effect.
type Task struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	RunAt     time.Time       `json:"run_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// Storage persists tasks until they are due.
type Storage interface {
	// Add stores a task.
	Add(ctx context.Context, task Task) error

	// ClaimDue removes and returns up to limit tasks due at or before now.
	// A claimed task is gone from storage whether or not its handler
	// succeeds.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]Task, error)
}

// Enqueuer schedules tasks.
type Enqueuer struct {
	storage Storage
	now     func() time.Time
}

// EnqueuerOption configures the Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithEnqueuerClock overrides the scheduling clock.
func WithEnqueuerClock(now func() time.Time) EnqueuerOption {
	return func(e *Enqueuer) { e.now = now }
}

// NewEnqueuer creates an Enqueuer over the given storage.
func NewEnqueuer(storage Storage, opts ...EnqueuerOption) *Enqueuer {
	if storage == nil {
		panic("deferred: storage is required")
	}
	e := &Enqueuer{
		storage: storage,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue schedules a named task to run after the given delay. The payload
// is JSON-serialized for the matching handler.
func (e *Enqueuer) Enqueue(ctx context.Context, name string, payload any, delay time.Duration) error {
	if name == "" {
		return fmt.Errorf("deferred: task name is required")
	}
	if delay < 0 {
		delay = 0
	}
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal task payload: %w", err)
		}
		raw = data
	}
	now := e.now()
	return e.storage.Add(ctx, Task{
		ID:        uuid.NewString(),
		Name:      name,
		Payload:   raw,
		RunAt:     now.Add(delay),
		CreatedAt: now,
	})
}
