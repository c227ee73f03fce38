package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewReactionEngine(3, time.Minute).WithClock(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		e.RecordPolicyDeny()
		allowed, _ := e.IsExecutionAllowed()
		require.True(t, allowed, "below threshold after %d denials", i+1)
	}

	e.RecordPolicyDeny()
	allowed, reason := e.IsExecutionAllowed()
	assert.False(t, allowed)
	assert.Contains(t, reason, "execution suspended")
}

func TestBreakerStaysTrippedUntilReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewReactionEngine(1, time.Minute).WithClock(func() time.Time { return now })

	e.RecordPolicyDeny()
	allowed, _ := e.IsExecutionAllowed()
	require.False(t, allowed)

	// No timed half-open: hours later it is still tripped.
	now = now.Add(6 * time.Hour)
	allowed, _ = e.IsExecutionAllowed()
	assert.False(t, allowed, "breaker must never re-enable itself")

	e.Reset()
	allowed, _ = e.IsExecutionAllowed()
	assert.True(t, allowed)
	assert.Equal(t, 0, e.DenialCount())
}

func TestDenialWindowPrunes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := NewReactionEngine(3, time.Minute).WithClock(func() time.Time { return now })

	e.RecordPolicyDeny()
	e.RecordPolicyDeny()
	now = now.Add(2 * time.Minute)
	e.RecordPolicyDeny()

	allowed, _ := e.IsExecutionAllowed()
	assert.True(t, allowed, "old denials outside the window must not count")
	assert.Equal(t, 1, e.DenialCount())
}

func TestDenialLedgerReceipts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewDenialLedger().WithClock(func() time.Time { return now })

	r := l.Deny(DenialPolicy, "delete_note", contracts.RoleUser, contracts.RuleDestructive,
		"destructive tool requires owner", "c-1")

	assert.Equal(t, "denial-1", r.ReceiptID)
	assert.Equal(t, DenialPolicy, r.Source)
	assert.NotEmpty(t, r.ContentHash)

	r2 := l.Deny(DenialGuard, "execute_job", contracts.RoleAdmin, "", "nonce replay", "c-2")
	assert.Equal(t, "denial-2", r2.ReceiptID)
	assert.NotEqual(t, r.ContentHash, r2.ContentHash)
	assert.Len(t, l.Receipts(), 2)
}
