// Package trust owns the agent's reputation score and the tier derived from
// it. The tier bounds what the agent may do autonomously; per-app allowlists
// narrow it further. Tier alone is necessary but never sufficient for
// execute access.
package trust

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// Tier is the autonomy grade derived from the score.
type Tier string

const (
	TierObserver Tier = "OBSERVER"
	TierDrafter  Tier = "DRAFTER"
	TierAgent    Tier = "AGENT"
)

// OutcomeKind distinguishes what kind of action an outcome report covers.
type OutcomeKind string

const (
	KindExecution OutcomeKind = "execution"
	KindProposal  OutcomeKind = "proposal"
)

// Score adjustments and boundaries.
const (
	InitialScore     = 50.0
	MaxScore         = 100.0
	MinScore         = 0.0
	executionReward  = 1.0
	proposalReward   = 0.2
	failurePenalty   = 5.0
	rejectionPenalty = 2.0
	drafterFloor     = 50.0
	agentFloor       = 85.0
)

// TierForScore derives the tier from a score.
func TierForScore(score float64) Tier {
	switch {
	case score < drafterFloor:
		return TierObserver
	case score < agentFloor:
		return TierDrafter
	default:
		return TierAgent
	}
}

// Engine is the reputation ledger. All mutation goes through outcome and
// rejection reports; the tier is recomputed after every report.
type Engine struct {
	mu         sync.Mutex
	score      float64
	successes  int
	failures   int
	rejections int
	// drafterApps may run at the actual tier; executeApps additionally may
	// receive AGENT-level execute access. The execute list is the narrower
	// of the two.
	drafterApps map[string]bool
	executeApps map[string]bool
	clock       func() time.Time
	logger      *slog.Logger
}

// NewEngine creates an engine at the initial score with the given
// allowlists. Every execute-approved app is implicitly drafter-approved.
func NewEngine(drafterApps, executeApps []string) *Engine {
	e := &Engine{
		score:       InitialScore,
		drafterApps: make(map[string]bool),
		executeApps: make(map[string]bool),
		clock:       time.Now,
		logger:      slog.Default().With("component", "trust"),
	}
	for _, app := range drafterApps {
		e.drafterApps[app] = true
	}
	for _, app := range executeApps {
		e.executeApps[app] = true
		e.drafterApps[app] = true
	}
	return e
}

// WithClock overrides the clock for testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// ReportOutcome adjusts the score for one completed action. Success earns
// +1 for executions and +0.2 for proposals, capped at 100; failure costs 5,
// floored at 0.
func (e *Engine) ReportOutcome(success bool, kind OutcomeKind) {
	e.mu.Lock()
	defer e.mu.Unlock()

	before := e.score
	if success {
		e.successes++
		reward := executionReward
		if kind == KindProposal {
			reward = proposalReward
		}
		e.score = min(e.score+reward, MaxScore)
	} else {
		e.failures++
		e.score = max(e.score-failurePenalty, MinScore)
	}
	e.logger.Debug("trust outcome", "success", success, "kind", kind,
		"score", e.score, "delta", e.score-before, "tier", TierForScore(e.score))
}

// ReportRejection records a user rejection of an agent action: costs 2.
func (e *Engine) ReportRejection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejections++
	e.score = max(e.score-rejectionPenalty, MinScore)
}

// Tier returns the current global tier.
func (e *Engine) Tier() Tier {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TierForScore(e.score)
}

// EffectiveTier returns the tier the agent actually holds inside one app
// scope. Below the drafter floor the answer is always OBSERVER; above it,
// apps off the drafter allowlist still see only OBSERVER.
func (e *Engine) EffectiveTier(app string) Tier {
	e.mu.Lock()
	defer e.mu.Unlock()
	tier := TierForScore(e.score)
	if tier == TierObserver {
		return TierObserver
	}
	if !e.drafterApps[app] {
		return TierObserver
	}
	return tier
}

// CanExecute reports whether the agent holds AGENT-level execute access in
// an app scope. Requires the AGENT tier and membership on the stricter
// execute allowlist.
func (e *Engine) CanExecute(app string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return TierForScore(e.score) == TierAgent && e.executeApps[app]
}

// State returns a snapshot for audit and status surfaces.
func (e *Engine) State() contracts.TrustState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return contracts.TrustState{
		Score:             e.score,
		Tier:              string(TierForScore(e.score)),
		SuccessfulActions: e.successes,
		FailedActions:     e.failures,
		UserRejections:    e.rejections,
	}
}
