package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type Handler func(ctx context.Context, task Task) error

// Router fans a task out to the handlers subscribed to its type.
type Router struct {
	handlers map[Type][]Handler
	logger   *slog.Logger
	mu       sync.RWMutex
}

func NewRouter(logger *slog.Logger) *Router {
	return &Router{
		handlers: make(map[Type][]Handler),
		logger:   logger,
	}
}

func (r *Router) Subscribe(taskType Type, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[taskType] = append(r.handlers[taskType], handler)
	r.logger.Info("task handler registered",
		"task_type", taskType,
		"total_handlers", len(r.handlers[taskType]))
}

func (r *Router) Handles(taskType Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[taskType]) > 0
}

// Handle runs every handler for the task in order and stops at the first failure.
func (r *Router) Handle(ctx context.Context, task Task) error {
	r.mu.RLock()
	handlers, exists := r.handlers[task.Type]
	r.mu.RUnlock()

	if !exists || len(handlers) == 0 {
		r.logger.Warn("no handlers for task type", "task_type", task.Type, "task_id", task.ID)
		return nil
	}

	for _, handler := range handlers {
		if err := handler(ctx, task); err != nil {
			r.logger.Error("task handler failed",
				"task_type", task.Type,
				"task_id", task.ID,
				"attempt", task.Attempt,
				"error", err)
			return fmt.Errorf("handler failed for task %s: %w", task.Type, err)
		}
	}

	return nil
}
