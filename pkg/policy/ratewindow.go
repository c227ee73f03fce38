package policy

import (
	"sync"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// WindowLength is the trailing window rate limits are counted over.
const WindowLength = 60 * time.Second

// DefaultRateLimits are the per-action-type call budgets per trailing window.
var DefaultRateLimits = map[contracts.ActionType]int{
	contracts.ActionRead:    60,
	contracts.ActionPropose: 20,
	contracts.ActionExecute: 5,
	contracts.ActionDelete:  2,
	contracts.ActionAdmin:   2,
}

// RateWindow counts calls per action type in a trailing window. The exact
// trailing-window semantics (a call at t blocks until t+60s has fully
// passed) is what the limits specify, so this is not a token bucket.
type RateWindow struct {
	mu     sync.Mutex
	limits map[contracts.ActionType]int
	calls  map[contracts.ActionType][]time.Time
	clock  func() time.Time
}

// NewRateWindow creates a window with the default limits.
func NewRateWindow() *RateWindow {
	return &RateWindow{
		limits: DefaultRateLimits,
		calls:  make(map[contracts.ActionType][]time.Time),
		clock:  time.Now,
	}
}

// WithLimits overrides the per-action budgets.
func (w *RateWindow) WithLimits(limits map[contracts.ActionType]int) *RateWindow {
	w.limits = limits
	return w
}

// WithClock overrides the clock for testing.
func (w *RateWindow) WithClock(clock func() time.Time) *RateWindow {
	w.clock = clock
	return w
}

// Allow records a call for the action type unless the trailing-window count
// has reached the limit. Expired entries are dropped on access.
func (w *RateWindow) Allow(action contracts.ActionType) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock()
	cutoff := now.Add(-WindowLength)
	kept := w.calls[action][:0]
	for _, at := range w.calls[action] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	w.calls[action] = kept

	limit, ok := w.limits[action]
	if !ok {
		limit = DefaultRateLimits[contracts.ActionAdmin]
	}
	if len(kept) >= limit {
		return false
	}
	w.calls[action] = append(kept, now)
	return true
}

// Count reports the live call count for an action type.
func (w *RateWindow) Count(action contracts.ActionType) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := w.clock().Add(-WindowLength)
	n := 0
	for _, at := range w.calls[action] {
		if at.After(cutoff) {
			n++
		}
	}
	return n
}
