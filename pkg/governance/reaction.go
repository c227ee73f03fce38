// Package governance holds the reaction engine and the denial ledger. The
// reaction engine is a circuit breaker over policy denials, not a per-call
// rule: once tripped, both the gateway loop and the worker guard refuse all
// executions until an operator resets it. It never re-enables itself on a
// timer; silent recovery would hide the condition that tripped it.
package governance

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultDenialThreshold trips the breaker at this many denials inside
	// the tracking window.
	DefaultDenialThreshold = 5
	// DefaultDenialWindow is the trailing window denials are counted over.
	DefaultDenialWindow = 5 * time.Minute
)

// ReactionEngine tracks recent policy denials and gates all execution once
// the threshold is reached.
type ReactionEngine struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	denials   []time.Time
	tripped   bool
	trippedAt time.Time
	clock     func() time.Time
	logger    *slog.Logger
}

// NewReactionEngine creates an engine with the given threshold and window.
// Non-positive arguments fall back to the defaults.
func NewReactionEngine(threshold int, window time.Duration) *ReactionEngine {
	if threshold <= 0 {
		threshold = DefaultDenialThreshold
	}
	if window <= 0 {
		window = DefaultDenialWindow
	}
	return &ReactionEngine{
		threshold: threshold,
		window:    window,
		clock:     time.Now,
		logger:    slog.Default().With("component", "governance"),
	}
}

// WithClock overrides the clock for testing.
func (e *ReactionEngine) WithClock(clock func() time.Time) *ReactionEngine {
	e.clock = clock
	return e
}

// RecordPolicyDeny registers one denial. Trips the breaker when the
// trailing-window count reaches the threshold.
func (e *ReactionEngine) RecordPolicyDeny() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock()
	e.pruneLocked(now)
	e.denials = append(e.denials, now)

	if !e.tripped && len(e.denials) >= e.threshold {
		e.tripped = true
		e.trippedAt = now
		e.logger.Warn("reaction engine tripped",
			"denials", len(e.denials), "threshold", e.threshold, "window", e.window)
	}
}

// IsExecutionAllowed reports whether executions may proceed. A tripped
// breaker stays tripped until Reset regardless of how old the denials are.
func (e *ReactionEngine) IsExecutionAllowed() (bool, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tripped {
		return false, fmt.Sprintf("execution suspended: %d policy denials within %s (tripped at %s)",
			e.threshold, e.window, e.trippedAt.UTC().Format(time.RFC3339))
	}
	return true, ""
}

// Reset clears the breaker and the denial history. Operator action only.
func (e *ReactionEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tripped = false
	e.trippedAt = time.Time{}
	e.denials = nil
	e.logger.Info("reaction engine reset")
}

// DenialCount reports the live denial count inside the window.
func (e *ReactionEngine) DenialCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pruneLocked(e.clock())
	return len(e.denials)
}

func (e *ReactionEngine) pruneLocked(now time.Time) {
	cutoff := now.Add(-e.window)
	kept := e.denials[:0]
	for _, at := range e.denials {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	e.denials = kept
}
