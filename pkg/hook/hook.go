// Package hook provides a small typed dispatcher for cross-package
// extension points. Each Hook instance is an explicit registry owned by
// whoever exposes the extension point; there is no global state.
package hook

import (
	"context"
	"errors"
	"sync"
)

// ErrNoHandlers is returned by First when nothing is registered.
var ErrNoHandlers = errors.New("hook: no handlers registered")

// Handler computes a result for one hook invocation.
type Handler[A, R any] func(ctx context.Context, arg A) (R, error)

// Hook is a typed extension point. The zero value is ready to use.
type Hook[A, R any] struct {
	mu       sync.RWMutex
	handlers []Handler[A, R]
}

// Register appends a handler. Registration order is invocation order.
func (h *Hook[A, R]) Register(handler Handler[A, R]) {
	if handler == nil {
		panic("hook: nil handler")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers = append(h.handlers, handler)
}

// Len returns the number of registered handlers.
func (h *Hook[A, R]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers)
}

// Fire invokes every handler in order and collects all results. The first
// handler error stops the run.
func (h *Hook[A, R]) Fire(ctx context.Context, arg A) ([]R, error) {
	h.mu.RLock()
	handlers := h.handlers
	h.mu.RUnlock()

	results := make([]R, 0, len(handlers))
	for _, handler := range handlers {
		result, err := handler(ctx, arg)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// First invokes handlers in order and returns the first result. With no
// handlers registered it returns ErrNoHandlers, which callers must treat as
// a configuration error rather than an empty result.
func (h *Hook[A, R]) First(ctx context.Context, arg A) (R, error) {
	h.mu.RLock()
	handlers := h.handlers
	h.mu.RUnlock()

	var zero R
	if len(handlers) == 0 {
		return zero, ErrNoHandlers
	}
	return handlers[0](ctx, arg)
}
