// Package guard is the third runtime defense: an independent re-check at the
// execution boundary. It owns its own nonce pool, never shared with the
// gateway's, so bypassing the gateway does not bypass the worker. Checks run
// in fixed order and the first failure blocks with a structured reason.
package guard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/governance"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/nonce"
)

// Check names, in verification order.
const (
	CheckBreaker    = "breaker"
	CheckVerdict    = "verdict"
	CheckNonce      = "nonce"
	CheckScopeToken = "scope_token"
	CheckArgsHash   = "args_hash"
)

// Input is what the guard verifies just before execution.
type Input struct {
	Decision         contracts.PolicyDecision `json:"decision"`
	Nonce            string                   `json:"nonce"`
	ScopeToken       string                   `json:"scopeToken"`
	ArgsHash         string                   `json:"argsHash"`
	ApprovalArgsHash string                   `json:"approvalArgsHash,omitempty"`
	CorrelationID    string                   `json:"correlationId"`
}

// Result is the guard's structured answer.
type Result struct {
	Permitted     bool   `json:"permitted"`
	FailedCheck   string `json:"failedCheck,omitempty"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlationId"`
}

// Guard verifies executions against the worker-local nonce pool and the
// governance breaker.
type Guard struct {
	nonces  nonce.Pool
	breaker *governance.ReactionEngine
	logger  *slog.Logger
}

// New creates a guard. The pool must be the worker's own; handing it the
// gateway pool collapses the two replay checks into one.
func New(pool nonce.Pool, breaker *governance.ReactionEngine) *Guard {
	return &Guard{
		nonces:  pool,
		breaker: breaker,
		logger:  slog.Default().With("component", "guard"),
	}
}

// Verify runs the ordered checks. The nonce is registered in the worker pool
// only on full success, so a blocked call does not poison its nonce here.
func (g *Guard) Verify(ctx context.Context, in Input) Result {
	block := func(check, reason string) Result {
		g.logger.Warn("guard blocked execution",
			"check", check, "reason", reason, "correlationId", in.CorrelationID)
		return Result{FailedCheck: check, Reason: reason, CorrelationID: in.CorrelationID}
	}

	if allowed, reason := g.breaker.IsExecutionAllowed(); !allowed {
		return block(CheckBreaker, reason)
	}

	if in.Decision.Verdict != contracts.VerdictAllow {
		return block(CheckVerdict,
			fmt.Sprintf("policy verdict is %s, execution requires ALLOW", in.Decision.Verdict))
	}

	seen, err := g.nonces.Seen(ctx, in.Nonce)
	if err != nil {
		return block(CheckNonce, fmt.Sprintf("nonce check failed: %v", err))
	}
	if seen {
		return block(CheckNonce, "nonce already used at the execution boundary")
	}

	if in.ScopeToken == "" {
		return block(CheckScopeToken, "scope token is empty")
	}

	if in.ApprovalArgsHash != "" && in.ApprovalArgsHash != in.ArgsHash {
		return block(CheckArgsHash,
			fmt.Sprintf("execution hash %s does not match approved %s", in.ArgsHash, in.ApprovalArgsHash))
	}

	if ok, err := g.nonces.Use(ctx, in.Nonce); err != nil || !ok {
		return block(CheckNonce, "nonce registration failed")
	}
	return Result{Permitted: true, CorrelationID: in.CorrelationID}
}
