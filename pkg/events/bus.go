// Package events provides the in-process event bus the kernel and gateway
// publish correlated governance events on. The bus is explicitly constructed
// and injectable so tests never share state.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Well-known event types emitted by the kernel and the tool-execution chain.
const (
	TypeCapabilityOpened  = "CAPABILITY_OPENED"
	TypeWindowClosed      = "WINDOW_CLOSED"
	TypeWindowFocused     = "WINDOW_FOCUSED"
	TypeWindowMinimized   = "WINDOW_MINIMIZED"
	TypeWindowRestored    = "WINDOW_RESTORED"
	TypeWindowMoved       = "WINDOW_MOVED"
	TypeSpaceSwitched     = "SPACE_SWITCHED"
	TypeSpaceAccessDenied = "SPACE_ACCESS_DENIED"
	TypeDecisionExplained = "DECISION_EXPLAINED"
	TypeStepUpRequired    = "STEP_UP_REQUIRED"
	TypeStepUpCompleted   = "STEP_UP_COMPLETED"
	TypeStepUpCancelled   = "STEP_UP_CANCELLED"
	TypeSessionChanged    = "SESSION_CHANGED"
)

// Event is one correlated occurrence on the bus.
type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	CorrelationID string                 `json:"correlationId"`
	At            time.Time              `json:"at"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// Handler receives published events synchronously, in publish order.
type Handler func(Event)

// Bus is a synchronous fan-out bus that also retains published events for
// inspection. Publish order equals delivery order; handlers run inline so
// audit emission cannot reorder relative to the decision it describes.
type Bus struct {
	mu       sync.Mutex
	handlers []Handler
	log      []Event
	clock    func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{clock: time.Now}
}

// WithClock overrides the clock for testing.
func (b *Bus) WithClock(clock func() time.Time) *Bus {
	b.clock = clock
	return b
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish emits an event and returns it.
func (b *Bus) Publish(eventType, correlationID string, payload map[string]interface{}) Event {
	b.mu.Lock()
	ev := Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		CorrelationID: correlationID,
		At:            b.clock(),
		Payload:       payload,
	}
	b.log = append(b.log, ev)
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return ev
}

// Events returns a snapshot of all published events.
func (b *Bus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.log))
	copy(out, b.log)
	return out
}

// Reset drops retained events and handlers. For test isolation.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = nil
	b.handlers = nil
}
