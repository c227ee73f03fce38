package worker

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/governance"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/guard"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/nonce"
)

var workerNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const testHMACSecret = "worker-result-secret"

type workerFixture struct {
	worker *Worker
	sink   *MemorySink
	priv   ed25519.PrivateKey
}

func newWorkerFixture(t *testing.T) *workerFixture {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	pool := nonce.NewMemoryPool(nonce.DefaultTTL).WithClock(func() time.Time { return workerNow })
	breaker := governance.NewReactionEngine(governance.DefaultDenialThreshold, governance.DefaultDenialWindow).
		WithClock(func() time.Time { return workerNow })
	g := guard.New(pool, breaker)

	d := NewDispatcher(nil)
	d.Register("notes.read", func(_ context.Context, payload, _ string) (interface{}, error) {
		return map[string]interface{}{"echo": payload}, nil
	})

	sink := NewMemorySink()
	w := New(Config{
		WorkerID:   "worker-1",
		PublicKey:  pub,
		HMACSecret: testHMACSecret,
	}, d, g, NewMemoryQueue(), sink).WithClock(func() time.Time { return workerNow })

	return &workerFixture{worker: w, sink: sink, priv: priv}
}

func (f *workerFixture) signedEnvelope(t *testing.T, mutate func(*Ticket)) *Envelope {
	t.Helper()
	payload := `{"path":"/inbox"}`
	ticket := Ticket{
		JobID:            "job-1",
		JobType:          "notes.read",
		ActorID:          "user-1",
		Scope:            []string{"core.notes"},
		ScopeToken:       "scope-token-1",
		Verdict:          string(contracts.VerdictAllow),
		PolicyDecisionID: "dec-1",
		RequestedAt:      workerNow.UnixMilli(),
		ExpiresAt:        workerNow.Add(time.Minute).UnixMilli(),
		PayloadHash:      ComputePayloadHash(payload),
		ArgsHash:         "abcd1234abcd1234",
		Nonce:            "nonce-1",
		CorrelationID:    "corr-1",
	}
	if mutate != nil {
		mutate(&ticket)
	}
	require.NoError(t, ticket.Sign(f.priv))
	return &Envelope{
		Ticket:   ticket,
		Payload:  payload,
		Decision: contracts.PolicyDecision{Verdict: contracts.VerdictAllow},
	}
}

func TestProcessHappyPath(t *testing.T) {
	f := newWorkerFixture(t)
	env := f.signedEnvelope(t, nil)

	require.NoError(t, f.worker.Process(context.Background(), env))

	results := f.sink.Results()
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Equal(t, "job-1", res.JobID)
	assert.Equal(t, "corr-1", res.CorrelationID)
	assert.NotEmpty(t, res.ResultHash)

	ok, err := res.VerifySignature(testHMACSecret)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProcessRejectsTamperedTicket(t *testing.T) {
	f := newWorkerFixture(t)
	env := f.signedEnvelope(t, nil)
	env.Ticket.JobType = "notes.write"

	require.NoError(t, f.worker.Process(context.Background(), env))

	results := f.sink.Results()
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, FailTicketInvalid, results[0].ErrorCode)
}

func TestProcessRejectsExpiredTicket(t *testing.T) {
	f := newWorkerFixture(t)
	env := f.signedEnvelope(t, func(tk *Ticket) {
		tk.ExpiresAt = workerNow.Add(-time.Second).UnixMilli()
	})

	require.NoError(t, f.worker.Process(context.Background(), env))

	results := f.sink.Results()
	require.Len(t, results, 1)
	assert.Equal(t, FailTicketExpired, results[0].ErrorCode)
}

func TestProcessRejectsPayloadMismatch(t *testing.T) {
	f := newWorkerFixture(t)
	env := f.signedEnvelope(t, nil)
	env.Payload = `{"path":"/secrets"}`

	require.NoError(t, f.worker.Process(context.Background(), env))

	results := f.sink.Results()
	require.Len(t, results, 1)
	assert.Equal(t, FailPayloadMismatch, results[0].ErrorCode)
}

func TestProcessGuardBlocksNonAllowVerdict(t *testing.T) {
	f := newWorkerFixture(t)
	env := f.signedEnvelope(t, nil)
	env.Decision = contracts.PolicyDecision{Verdict: contracts.VerdictDeny}

	require.NoError(t, f.worker.Process(context.Background(), env))

	results := f.sink.Results()
	require.Len(t, results, 1)
	assert.Equal(t, FailGuardBlocked, results[0].ErrorCode)
	assert.Contains(t, results[0].ErrorMessage, "verdict")
}

func TestProcessBlocksReplayedNonce(t *testing.T) {
	f := newWorkerFixture(t)

	require.NoError(t, f.worker.Process(context.Background(), f.signedEnvelope(t, nil)))
	require.NoError(t, f.worker.Process(context.Background(), f.signedEnvelope(t, func(tk *Ticket) {
		tk.JobID = "job-2"
	})))

	results := f.sink.Results()
	require.Len(t, results, 2)
	assert.Equal(t, StatusSucceeded, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Equal(t, FailGuardBlocked, results[1].ErrorCode)
	assert.Contains(t, results[1].ErrorMessage, "nonce")
}

func TestProcessReportsExecutionError(t *testing.T) {
	f := newWorkerFixture(t)
	env := f.signedEnvelope(t, func(tk *Ticket) {
		tk.JobType = "unknown.job"
	})

	require.NoError(t, f.worker.Process(context.Background(), env))

	results := f.sink.Results()
	require.Len(t, results, 1)
	assert.Equal(t, FailExecutionError, results[0].ErrorCode)
}

func TestResultSignatureDetectsTampering(t *testing.T) {
	res := &Result{
		JobID:         "job-1",
		Status:        StatusSucceeded,
		StartedAt:     1,
		FinishedAt:    2,
		ResultHash:    "abc",
		Metrics:       Metrics{Attempts: 1, LatencyMs: 1},
		CorrelationID: "corr-1",
		WorkerID:      "worker-1",
	}
	require.NoError(t, res.Sign(testHMACSecret))

	res.Status = StatusFailed
	ok, err := res.VerifySignature(testHMACSecret)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryQueueOrdering(t *testing.T) {
	q := NewMemoryQueue()
	q.Push(&Envelope{Ticket: Ticket{JobID: "a"}})
	q.Push(&Envelope{Ticket: Ticket{JobID: "b"}})

	first, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", first.Ticket.JobID)

	second, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", second.Ticket.JobID)

	empty, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, empty)
}
