// Package worker executes approved jobs behind an independent verification
// boundary. Tickets are re-verified from scratch: signature, expiry, payload
// hash, then the execution guard. The worker trusts nothing that upstream
// layers claim to have checked.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/guard"
)

// Failure codes reported back with FAILED results.
const (
	FailTicketInvalid   = "TICKET_INVALID"
	FailTicketExpired   = "TICKET_EXPIRED"
	FailPayloadMismatch = "PAYLOAD_MISMATCH"
	FailGuardBlocked    = "GUARD_BLOCKED"
	FailExecutionError  = "EXECUTION_ERROR"
	FailHashError       = "HASH_ERROR"
)

// Envelope bundles a ticket with its payload and the policy decision the
// gateway recorded for it.
type Envelope struct {
	Ticket           Ticket                   `json:"ticket"`
	Payload          string                   `json:"payload"`
	Decision         contracts.PolicyDecision `json:"decision"`
	ApprovalArgsHash string                   `json:"approvalArgsHash,omitempty"`
}

// Queue hands envelopes to the polling loop.
type Queue interface {
	// Next returns the next envelope, or nil when the queue is empty.
	Next(ctx context.Context) (*Envelope, error)
}

// ResultSink receives signed results.
type ResultSink interface {
	Post(ctx context.Context, res *Result) error
}

// Config parametrizes the worker.
type Config struct {
	WorkerID     string
	PollInterval time.Duration
	PublicKey    []byte
	HMACSecret   string
}

// Worker is the polling loop.
type Worker struct {
	cfg        Config
	dispatcher *Dispatcher
	guard      *guard.Guard
	queue      Queue
	sink       ResultSink
	clock      func() time.Time
	logger     *slog.Logger
}

// New creates a worker.
func New(cfg Config, d *Dispatcher, g *guard.Guard, q Queue, sink ResultSink) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Worker{
		cfg:        cfg,
		dispatcher: d,
		guard:      g,
		queue:      q,
		sink:       sink,
		clock:      time.Now,
		logger:     slog.Default().With("component", "worker", "workerId", cfg.WorkerID),
	}
}

// WithClock overrides the time source. For tests.
func (w *Worker) WithClock(clock func() time.Time) *Worker {
	w.clock = clock
	return w
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker starting", "pollInterval", w.cfg.PollInterval)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			return
		case <-ticker.C:
			env, err := w.queue.Next(ctx)
			if err != nil {
				w.logger.Warn("queue poll failed", "error", err)
				continue
			}
			if env == nil {
				continue
			}
			if err := w.Process(ctx, env); err != nil {
				w.logger.Warn("job processing failed", "jobId", env.Ticket.JobID, "error", err)
			}
		}
	}
}

// Process verifies and executes a single envelope, then posts the signed
// result. Verification failures produce FAILED results rather than errors;
// the returned error covers only infrastructure problems.
func (w *Worker) Process(ctx context.Context, env *Envelope) error {
	ticket := &env.Ticket

	if err := ticket.VerifySignature(w.cfg.PublicKey); err != nil {
		return w.reportFailure(ctx, ticket, FailTicketInvalid, err.Error())
	}
	if err := ticket.ValidateExpiry(w.clock()); err != nil {
		return w.reportFailure(ctx, ticket, FailTicketExpired, err.Error())
	}
	if err := ticket.ValidatePayloadHash(env.Payload); err != nil {
		return w.reportFailure(ctx, ticket, FailPayloadMismatch, err.Error())
	}

	verdict := w.guard.Verify(ctx, guard.Input{
		Decision:         env.Decision,
		Nonce:            ticket.Nonce,
		ScopeToken:       ticket.ScopeToken,
		ArgsHash:         ticket.ArgsHash,
		ApprovalArgsHash: env.ApprovalArgsHash,
		CorrelationID:    ticket.CorrelationID,
	})
	if !verdict.Permitted {
		return w.reportFailure(ctx, ticket, FailGuardBlocked,
			verdict.FailedCheck+": "+verdict.Reason)
	}

	startedAt := w.clock().UnixMilli()
	resultData, execErr := w.dispatcher.Dispatch(ctx, ticket.JobType, env.Payload, ticket.CorrelationID)
	finishedAt := w.clock().UnixMilli()
	if execErr != nil {
		return w.reportFailure(ctx, ticket, FailExecutionError, execErr.Error())
	}

	resultHash, err := ComputeResultHash(resultData)
	if err != nil {
		return w.reportFailure(ctx, ticket, FailHashError, err.Error())
	}

	result := &Result{
		JobID:      ticket.JobID,
		Status:     StatusSucceeded,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		ResultHash: resultHash,
		ResultData: resultData,
		Metrics: Metrics{
			Attempts:  1,
			LatencyMs: finishedAt - startedAt,
		},
		CorrelationID: ticket.CorrelationID,
		WorkerID:      w.cfg.WorkerID,
	}
	if err := result.Sign(w.cfg.HMACSecret); err != nil {
		return err
	}

	w.logger.Info("job completed", "jobId", ticket.JobID, "latencyMs", result.Metrics.LatencyMs)
	return w.sink.Post(ctx, result)
}

func (w *Worker) reportFailure(ctx context.Context, ticket *Ticket, code, msg string) error {
	now := w.clock().UnixMilli()
	result := &Result{
		JobID:         ticket.JobID,
		Status:        StatusFailed,
		StartedAt:     now,
		FinishedAt:    now,
		ResultHash:    ComputePayloadHash(""),
		ErrorCode:     code,
		ErrorMessage:  msg,
		Metrics:       Metrics{Attempts: 1},
		CorrelationID: ticket.CorrelationID,
		WorkerID:      w.cfg.WorkerID,
	}
	if err := result.Sign(w.cfg.HMACSecret); err != nil {
		return err
	}
	w.logger.Warn("job rejected", "jobId", ticket.JobID, "code", code, "reason", msg)
	return w.sink.Post(ctx, result)
}

// MemoryQueue is an in-process queue for tests and single-binary setups.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []*Envelope
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Push enqueues an envelope.
func (q *MemoryQueue) Push(env *Envelope) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, env)
}

// Next pops the oldest envelope, or nil.
func (q *MemoryQueue) Next(_ context.Context) (*Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, nil
	}
	env := q.jobs[0]
	q.jobs = q.jobs[1:]
	return env, nil
}

// MemorySink collects posted results.
type MemorySink struct {
	mu      sync.Mutex
	results []*Result
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Post records a result.
func (s *MemorySink) Post(_ context.Context, res *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return nil
}

// Results returns everything posted so far.
func (s *MemorySink) Results() []*Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Result, len(s.results))
	copy(out, s.results)
	return out
}
