package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryingProviderRetriesRetryable(t *testing.T) {
	mock := NewMockProvider().
		EnqueueError(NewProviderError(429, "rate limited")).
		EnqueueError(NewProviderError(503, "upstream busy")).
		Enqueue(Output{Content: "ok"})

	p := NewRetryingProvider(mock, 1000, 10, 5)
	out, err := p.Generate(context.Background(), Input{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Content)
	assert.Equal(t, 3, mock.Calls())
}

func TestRetryingProviderStopsOnNonRetryable(t *testing.T) {
	mock := NewMockProvider().
		EnqueueError(NewProviderError(400, "bad request")).
		Enqueue(Output{Content: "never"})

	p := NewRetryingProvider(mock, 1000, 10, 5)
	_, err := p.Generate(context.Background(), Input{})
	require.Error(t, err)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 400, perr.StatusCode)
	assert.Equal(t, 1, mock.Calls())
}

func TestRetryingProviderExhaustsAttempts(t *testing.T) {
	mock := NewMockProvider().
		EnqueueError(NewProviderError(500, "boom")).
		EnqueueError(NewProviderError(500, "boom")).
		EnqueueError(NewProviderError(500, "boom"))

	p := NewRetryingProvider(mock, 1000, 10, 3)
	_, err := p.Generate(context.Background(), Input{})
	require.Error(t, err)
	assert.Equal(t, 3, mock.Calls())
}

func TestProviderErrorClassification(t *testing.T) {
	assert.True(t, NewProviderError(429, "x").Retryable)
	assert.True(t, NewProviderError(500, "x").Retryable)
	assert.True(t, NewProviderError(502, "x").Retryable)
	assert.False(t, NewProviderError(400, "x").Retryable)
	assert.False(t, NewProviderError(401, "x").Retryable)
	assert.False(t, NewProviderError(404, "x").Retryable)
}

func TestNewToolCallHashesArguments(t *testing.T) {
	a, err := NewToolCall("read_notes", map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	b, err := NewToolCall("read_notes", map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Len(t, a.ArgumentsHash, 16)
	assert.Equal(t, a.ArgumentsHash, b.ArgumentsHash)

	c, err := NewToolCall("read_notes", map[string]interface{}{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.ArgumentsHash, c.ArgumentsHash)
}

func TestMockProviderRecordsInput(t *testing.T) {
	mock := NewMockProvider().Enqueue(Output{Content: "hi"})
	in := Input{Messages: []Message{{Role: RoleUser, Content: "hello"}}}
	out, err := mock.Generate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Content)
	assert.Equal(t, in, mock.LastInput())
}
