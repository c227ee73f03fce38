package llm

import (
	"context"
	"sync"
)

// MockProvider replays scripted outputs. For tests and offline runs.
type MockProvider struct {
	mu      sync.Mutex
	queue   []Output
	errs    []error
	calls   int
	lastIn  Input
}

// NewMockProvider creates an empty mock. Enqueue responses before use.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Enqueue schedules a successful response.
func (m *MockProvider) Enqueue(out Output) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, out)
	m.errs = append(m.errs, nil)
	return m
}

// EnqueueError schedules a failure.
func (m *MockProvider) EnqueueError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, Output{})
	m.errs = append(m.errs, err)
	return m
}

// Generate pops the next scripted response. An exhausted mock returns an
// empty output.
func (m *MockProvider) Generate(_ context.Context, in Input) (Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastIn = in
	if len(m.queue) == 0 {
		return Output{}, nil
	}
	out, err := m.queue[0], m.errs[0]
	m.queue, m.errs = m.queue[1:], m.errs[1:]
	return out, err
}

// Calls reports how many times Generate ran.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastInput returns the most recent request.
func (m *MockProvider) LastInput() Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastIn
}
