// Package llm defines the provider adapter boundary. The governance core is
// provider-transparent: identical tool calls produce identical decisions no
// matter which provider emitted them, so the only provider-specific logic
// allowed here is transport concerns (retries, rate limiting, error
// classification).
package llm

import (
	"context"
	"fmt"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/canonicalize"
)

// Role tags a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Schema      map[string]interface{} `json:"schema,omitempty"`
}

// Input is one generation request.
type Input struct {
	Messages    []Message  `json:"messages"`
	Tools       []ToolSpec `json:"tools,omitempty"`
	Temperature float64    `json:"temperature,omitempty"`
}

// ToolCall is a tool invocation the model asked for. ArgumentsHash is
// computed here so every downstream defense sees the same fingerprint the
// adapter saw.
type ToolCall struct {
	ToolName      string                 `json:"toolName"`
	Arguments     map[string]interface{} `json:"arguments"`
	ArgumentsHash string                 `json:"argumentsHash"`
}

// Usage counts tokens for one call.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// Output is one generation response.
type Output struct {
	Content      string            `json:"content,omitempty"`
	ToolCalls    []ToolCall        `json:"toolCalls,omitempty"`
	Usage        Usage             `json:"usage"`
	ProviderMeta map[string]string `json:"providerMeta,omitempty"`
}

// Provider generates model output. Implementations must carry an explicit
// timeout; the core never cancels mid-flight.
type Provider interface {
	Generate(ctx context.Context, in Input) (Output, error)
}

// ProviderError classifies a transport failure. 429 and 5xx are retryable.
type ProviderError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm: provider error %d: %s", e.StatusCode, e.Message)
}

// NewProviderError classifies a status code.
func NewProviderError(statusCode int, message string) *ProviderError {
	return &ProviderError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  statusCode == 429 || statusCode >= 500,
	}
}

// NewToolCall builds a tool call with its arguments hash filled in.
func NewToolCall(name string, args map[string]interface{}) (ToolCall, error) {
	hash, err := canonicalize.ArgsHash(args)
	if err != nil {
		return ToolCall{}, fmt.Errorf("llm: hash tool call args: %w", err)
	}
	return ToolCall{ToolName: name, Arguments: args, ArgumentsHash: hash}, nil
}
