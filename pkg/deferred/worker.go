package deferred

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Worker polls the storage and dispatches due tasks to registered
// handlers.
type Worker struct {
	storage      Storage
	handlers     map[string]Handler
	pollInterval time.Duration
	batchSize    int
	logger       *slog.Logger
	now          func() time.Time
}

// WorkerOption configures the Worker.
type WorkerOption func(*Worker)

// WithPollInterval sets how often the worker checks for due tasks.
func WithPollInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) { w.pollInterval = interval }
}

// WithBatchSize caps how many tasks one poll claims.
func WithBatchSize(size int) WorkerOption {
	return func(w *Worker) { w.batchSize = size }
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

// WithWorkerClock overrides the due-time clock.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

// NewWorker creates a Worker over the given storage.
func NewWorker(storage Storage, opts ...WorkerOption) *Worker {
	if storage == nil {
		panic("deferred: storage is required")
	}
	w := &Worker{
		storage:      storage,
		handlers:     make(map[string]Handler),
		pollInterval: 5 * time.Second,
		batchSize:    50,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RegisterHandler adds a handler. Registering two handlers for the same
// task name is a configuration error.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("deferred: handler is required")
	}
	if _, exists := w.handlers[handler.Name()]; exists {
		return fmt.Errorf("deferred: duplicate handler for %q", handler.Name())
	}
	w.handlers[handler.Name()] = handler
	return nil
}

// Run polls until the context is canceled. It always returns the context's
// error.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessDue(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessDue claims and dispatches one batch of due tasks. Exposed so
// hosts with their own scheduling can drive the worker directly.
func (w *Worker) ProcessDue(ctx context.Context) {
	tasks, err := w.storage.ClaimDue(ctx, w.now(), w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to claim due tasks", slog.Any("error", err))
		return
	}
	for _, task := range tasks {
		handler, ok := w.handlers[task.Name]
		if !ok {
			w.logger.WarnContext(ctx, "no handler for task",
				slog.String("task", task.Name),
				slog.String("task_id", task.ID))
			continue
		}
		if err := handler.Handle(ctx, task.Payload); err != nil {
			w.logger.ErrorContext(ctx, "task handler failed",
				slog.String("task", task.Name),
				slog.String("task_id", task.ID),
				slog.Any("error", err))
		}
	}
}
