package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitialTierIsDrafter(t *testing.T) {
	e := NewEngine(nil, nil)
	assert.Equal(t, TierDrafter, e.Tier())
	assert.Equal(t, InitialScore, e.State().Score)
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, TierObserver, TierForScore(0))
	assert.Equal(t, TierObserver, TierForScore(49.9))
	assert.Equal(t, TierDrafter, TierForScore(50))
	assert.Equal(t, TierDrafter, TierForScore(84.9))
	assert.Equal(t, TierAgent, TierForScore(85))
	assert.Equal(t, TierAgent, TierForScore(100))
}

func TestOutcomeAdjustments(t *testing.T) {
	e := NewEngine(nil, nil)

	e.ReportOutcome(true, KindExecution)
	assert.InDelta(t, 51.0, e.State().Score, 1e-9)

	e.ReportOutcome(true, KindProposal)
	assert.InDelta(t, 51.2, e.State().Score, 1e-9)

	e.ReportOutcome(false, KindExecution)
	assert.InDelta(t, 46.2, e.State().Score, 1e-9)
	assert.Equal(t, TierObserver, e.Tier())

	e.ReportRejection()
	assert.InDelta(t, 44.2, e.State().Score, 1e-9)

	st := e.State()
	assert.Equal(t, 2, st.SuccessfulActions)
	assert.Equal(t, 1, st.FailedActions)
	assert.Equal(t, 1, st.UserRejections)
}

func TestScoreCapAndFloor(t *testing.T) {
	e := NewEngine(nil, nil)
	for i := 0; i < 100; i++ {
		e.ReportOutcome(true, KindExecution)
	}
	assert.Equal(t, MaxScore, e.State().Score)

	for i := 0; i < 50; i++ {
		e.ReportOutcome(false, KindExecution)
	}
	assert.Equal(t, MinScore, e.State().Score)
}

func TestEffectiveTierPerApp(t *testing.T) {
	e := NewEngine([]string{"core.notes"}, nil)

	assert.Equal(t, TierDrafter, e.EffectiveTier("core.notes"))
	assert.Equal(t, TierObserver, e.EffectiveTier("core.files"), "app off the drafter list")

	// Below the drafter floor the answer is OBSERVER everywhere.
	for i := 0; i < 5; i++ {
		e.ReportOutcome(false, KindExecution)
	}
	assert.Equal(t, TierObserver, e.EffectiveTier("core.notes"))
}

func TestExecuteListIsStricter(t *testing.T) {
	e := NewEngine([]string{"core.notes", "core.files"}, []string{"core.notes"})

	// Drafter tier: no execute access anywhere.
	assert.False(t, e.CanExecute("core.notes"))

	for i := 0; i < 40; i++ {
		e.ReportOutcome(true, KindExecution)
	}
	assert.Equal(t, TierAgent, e.Tier())

	assert.True(t, e.CanExecute("core.notes"))
	assert.False(t, e.CanExecute("core.files"), "drafter-listed app is not execute-listed")
	assert.Equal(t, TierAgent, e.EffectiveTier("core.files"), "tier and execute access are separate questions")
}
