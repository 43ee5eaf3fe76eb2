package deferred

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler processes one kind of task.
type Handler interface {
	Name() string
	Handle(ctx context.Context, payload json.RawMessage) error
}

type taskHandler[T any] struct {
	name    string
	handler func(ctx context.Context, payload T) error
}

// NewTaskHandler wraps a typed function as a Handler; the payload is
// decoded into T before the function runs.
func NewTaskHandler[T any](name string, handler func(ctx context.Context, payload T) error) Handler {
	if name == "" {
		panic("deferred: handler name is required")
	}
	if handler == nil {
		panic("deferred: handler function is required")
	}
	return &taskHandler[T]{name: name, handler: handler}
}

func (h *taskHandler[T]) Name() string { return h.name }

func (h *taskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var decoded T
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return fmt.Errorf("decode %s payload: %w", h.name, err)
		}
	}
	return h.handler(ctx, decoded)
}
