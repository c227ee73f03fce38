package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrUnknownJobType is returned when no handler matches a ticket's job type.
var ErrUnknownJobType = errors.New("worker: unknown job type")

// JobHandler processes one job payload and returns result data.
type JobHandler func(ctx context.Context, payload string, correlationID string) (interface{}, error)

// Dispatcher routes job types to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]JobHandler
	logger   *slog.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[string]JobHandler),
		logger:   logger.With("component", "dispatcher"),
	}
}

// Register adds a handler for a job type.
func (d *Dispatcher) Register(jobType string, h JobHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[jobType] = h
}

// Dispatch routes a job to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, jobType, payload, correlationID string) (interface{}, error) {
	d.mu.RLock()
	h, ok := d.handlers[jobType]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	d.logger.Debug("executing job", "jobType", jobType, "correlationId", correlationID)
	return h(ctx, payload, correlationID)
}
