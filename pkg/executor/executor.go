package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrUnknownTool is returned when no handler is registered for a tool name.
var ErrUnknownTool = errors.New("executor: unknown tool")

// Handler executes one tool invocation. Handlers receive normalized
// arguments and return a structured result.
type Handler func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error)

// Invocation is a fully-approved tool call handed down from the gateway.
type Invocation struct {
	ToolName      string                 `json:"toolName"`
	Args          map[string]interface{} `json:"args"`
	CorrelationID string                 `json:"correlationId"`
}

// Outcome captures the result of a tool execution.
type Outcome struct {
	ToolName      string                 `json:"toolName"`
	Success       bool                   `json:"success"`
	Result        map[string]interface{} `json:"result,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Duration      time.Duration          `json:"duration"`
	CorrelationID string                 `json:"correlationId"`
}

// Registry maps tool names to handlers. Execution through the registry is
// the last hop of the pipeline; everything reaching it has already been
// admitted upstream.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a handler to a tool name. Re-registering replaces the
// previous handler.
func (r *Registry) Register(toolName string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[toolName] = h
}

// Has reports whether a handler exists for the tool.
func (r *Registry) Has(toolName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[toolName]
	return ok
}

// Tools returns the registered tool names.
func (r *Registry) Tools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Execute runs the handler for the invocation. Handler errors are folded
// into the outcome rather than returned, so callers always get a record of
// what happened; only a missing handler is a hard error.
func (r *Registry) Execute(ctx context.Context, inv Invocation) (Outcome, error) {
	r.mu.RLock()
	h, ok := r.handlers[inv.ToolName]
	r.mu.RUnlock()
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %s", ErrUnknownTool, inv.ToolName)
	}

	start := time.Now()
	result, err := h(ctx, inv.Args)
	out := Outcome{
		ToolName:      inv.ToolName,
		Duration:      time.Since(start),
		CorrelationID: inv.CorrelationID,
	}
	if err != nil {
		out.Error = err.Error()
		r.logger.Warn("tool execution failed",
			"tool", inv.ToolName,
			"correlation_id", inv.CorrelationID,
			"error", err)
		return out, nil
	}
	out.Success = true
	out.Result = result
	return out, nil
}
