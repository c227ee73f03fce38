// Package gateway orchestrates the tool request pipeline: firewall, policy
// chain, reaction breaker, worker guard, then the injected executor. Every
// decision point emits an audit event in decision order before the next
// stage runs. Non-ALLOW verdicts that can be cured (REQUIRE_APPROVAL,
// REQUIRE_OWNER) park the request for an explicit resume instead of
// terminating it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/audit"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/executor"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/firewall"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/governance"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/guard"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/observability"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/policy"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/trust"
)

// Resume errors.
var (
	ErrNoHeldRequest      = errors.New("gateway: no held request for correlation id")
	ErrHeldExpired        = errors.New("gateway: held request expired")
	ErrInsufficientRole   = errors.New("gateway: approver role insufficient")
	ErrExecutorUnassigned = errors.New("gateway: no executor configured")
)

// DefaultHoldTTL bounds how long a parked request stays resumable. It matches
// the nonce poison window so an approval can never outlive the replay guard.
const DefaultHoldTTL = 10 * time.Minute

// Audit event types emitted by the pipeline.
const (
	EventFirewallBlocked = "FIREWALL_BLOCKED"
	EventPolicyDecision  = "POLICY_DECISION"
	EventRequestHeld     = "REQUEST_HELD"
	EventGuardBlocked    = "GUARD_BLOCKED"
	EventToolExecuted    = "TOOL_EXECUTED"
	EventRequestResumed  = "REQUEST_RESUMED"
)

// Status summarizes what the pipeline did with a request.
type Status string

const (
	StatusExecuted Status = "EXECUTED"
	StatusDenied   Status = "DENIED"
	StatusHeld     Status = "HELD"
)

// Request is one tool execution request entering the pipeline.
type Request struct {
	ToolName      string                 `json:"toolName"`
	Args          map[string]interface{} `json:"args"`
	AppScope      string                 `json:"appScope"`
	App           string                 `json:"app,omitempty"`
	ActorRole     contracts.ActorRole    `json:"actorRole"`
	Environment   contracts.Environment  `json:"environment"`
	CorrelationID string                 `json:"correlationId,omitempty"`
}

// Response reports the pipeline outcome with every intermediate decision
// attached, so callers and auditors can reconstruct the path taken.
type Response struct {
	Status        Status                    `json:"status"`
	CorrelationID string                    `json:"correlationId"`
	Firewall      firewall.Result           `json:"firewall"`
	Decision      contracts.PolicyDecision  `json:"decision"`
	Guard         *guard.Result             `json:"guard,omitempty"`
	Execution     *executor.Outcome         `json:"execution,omitempty"`
	Denial        *governance.DenialReceipt `json:"denial,omitempty"`
}

// heldRequest parks a request that needs approval or an owner to proceed.
type heldRequest struct {
	req      Request
	verdict  contracts.Verdict
	argsHash string
	heldAt   time.Time
}

// Gateway runs the pipeline.
type Gateway struct {
	mu       sync.Mutex
	firewall *firewall.Firewall
	policy   *policy.Engine
	breaker  *governance.ReactionEngine
	denials  *governance.DenialLedger
	guard    *guard.Guard
	executor *executor.Registry
	trust    *trust.Engine
	audit    *audit.Sink
	telem    *observability.Provider
	held     map[string]*heldRequest
	holdTTL  time.Duration
	clock    func() time.Time
	logger   *slog.Logger
}

// Config wires the gateway's collaborators. All are required except Trust,
// which may be nil when no AI actor reputation is tracked, and Telemetry,
// which may be nil when no collector is configured.
type Config struct {
	Firewall  *firewall.Firewall
	Policy    *policy.Engine
	Breaker   *governance.ReactionEngine
	Denials   *governance.DenialLedger
	Guard     *guard.Guard
	Executor  *executor.Registry
	Trust     *trust.Engine
	Audit     *audit.Sink
	Telemetry *observability.Provider
}

// New creates a gateway.
func New(cfg Config) *Gateway {
	return &Gateway{
		firewall: cfg.Firewall,
		policy:   cfg.Policy,
		breaker:  cfg.Breaker,
		denials:  cfg.Denials,
		guard:    cfg.Guard,
		executor: cfg.Executor,
		trust:    cfg.Trust,
		audit:    cfg.Audit,
		telem:    cfg.Telemetry,
		held:     make(map[string]*heldRequest),
		holdTTL:  DefaultHoldTTL,
		clock:    time.Now,
		logger:   slog.Default().With("component", "gateway"),
	}
}

// WithClock overrides the time source. For tests.
func (g *Gateway) WithClock(clock func() time.Time) *Gateway {
	g.clock = clock
	return g
}

// Execute runs one request through the full pipeline.
func (g *Gateway) Execute(ctx context.Context, req Request) (Response, error) {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	return g.run(ctx, req, "")
}

// ResumeWithApproval replays a held request under an approver. A request
// held at REQUIRE_OWNER re-runs under the approver's role and needs an
// owner; one held at REQUIRE_APPROVAL keeps the original actor's role and
// needs at least an admin. Either way the original args hash becomes the
// approval hash, binding the approval to the exact arguments that were
// held.
func (g *Gateway) ResumeWithApproval(ctx context.Context, correlationID string, approverRole contracts.ActorRole) (Response, error) {
	g.mu.Lock()
	held, ok := g.held[correlationID]
	if ok {
		delete(g.held, correlationID)
	}
	g.mu.Unlock()
	if !ok {
		return Response{}, fmt.Errorf("%w: %s", ErrNoHeldRequest, correlationID)
	}
	if g.clock().Sub(held.heldAt) > g.holdTTL {
		return Response{}, fmt.Errorf("%w: %s held at %s", ErrHeldExpired, correlationID, held.heldAt.Format(time.RFC3339))
	}

	req := held.req
	switch held.verdict {
	case contracts.VerdictRequireOwner:
		if contracts.RoleRank(approverRole) < contracts.RoleRank(contracts.RoleOwner) {
			g.reHold(correlationID, held)
			return Response{}, fmt.Errorf("%w: %s requires owner, got %s", ErrInsufficientRole, held.verdict, approverRole)
		}
		req.ActorRole = approverRole
	case contracts.VerdictRequireApproval:
		if contracts.RoleRank(approverRole) < contracts.RoleRank(contracts.RoleAdmin) {
			g.reHold(correlationID, held)
			return Response{}, fmt.Errorf("%w: %s requires at least admin, got %s", ErrInsufficientRole, held.verdict, approverRole)
		}
	}

	g.emitAudit(EventRequestResumed, correlationID, map[string]interface{}{
		"tool":         req.ToolName,
		"heldVerdict":  string(held.verdict),
		"approverRole": string(approverRole),
	})
	return g.run(ctx, req, held.argsHash)
}

// HeldVerdict reports whether a request is parked and under which verdict.
func (g *Gateway) HeldVerdict(correlationID string) (contracts.Verdict, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	held, ok := g.held[correlationID]
	if !ok {
		return "", false
	}
	return held.verdict, true
}

func (g *Gateway) reHold(correlationID string, held *heldRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held[correlationID] = held
}

func (g *Gateway) run(ctx context.Context, req Request, approvalArgsHash string) (resp Response, err error) {
	resp = Response{Status: StatusDenied, CorrelationID: req.CorrelationID}

	if g.telem != nil {
		var done func(error)
		ctx, done = g.telem.TrackOperation(ctx, "gateway.execute",
			attribute.String("tool", req.ToolName),
			attribute.String("scope", req.AppScope),
		)
		defer func() { done(err) }()
	}

	// Firewall: normalization, payload cap, scope surface, schema shape.
	resp.Firewall = g.firewall.Check(req.ToolName, req.Args, req.AppScope, approvalArgsHash)
	if !resp.Firewall.Allowed {
		receipt := g.denials.Deny(governance.DenialFirewall, resp.Firewall.NormalizedName,
			req.ActorRole, "", resp.Firewall.Reason, req.CorrelationID)
		resp.Denial = &receipt
		g.recordDenial(ctx, "firewall")
		g.emitAudit(EventFirewallBlocked, req.CorrelationID, map[string]interface{}{
			"tool":   resp.Firewall.NormalizedName,
			"reason": resp.Firewall.Reason,
		})
		return resp, nil
	}

	cls := policy.ClassifyRisk(resp.Firewall.NormalizedName)
	input := contracts.PolicyInput{
		ToolName:         resp.Firewall.NormalizedName,
		ActionType:       cls.ActionType,
		AppScope:         req.AppScope,
		ActorRole:        req.ActorRole,
		Environment:      req.Environment,
		Nonce:            uuid.NewString(),
		ArgsHash:         resp.Firewall.ArgsHash,
		ApprovalArgsHash: approvalArgsHash,
		CorrelationID:    req.CorrelationID,
		Timestamp:        g.clock(),
	}

	resp.Decision = g.policy.Evaluate(ctx, input)
	g.recordDecision(ctx, string(resp.Decision.Verdict))
	auditPayload := map[string]interface{}{
		"tool":    resp.Decision.ToolName,
		"verdict": string(resp.Decision.Verdict),
		"risk":    string(resp.Decision.RiskLevel),
	}
	if blocking, ok := resp.Decision.BlockingReason(); ok {
		auditPayload["rule"] = string(blocking.RuleID)
	}
	g.emitAudit(EventPolicyDecision, req.CorrelationID, auditPayload)

	switch resp.Decision.Verdict {
	case contracts.VerdictDeny:
		g.breaker.RecordPolicyDeny()
		blocking, _ := resp.Decision.BlockingReason()
		receipt := g.denials.Deny(governance.DenialPolicy, resp.Decision.ToolName,
			req.ActorRole, blocking.RuleID, blocking.Message, req.CorrelationID)
		resp.Denial = &receipt
		g.recordDenial(ctx, "policy")
		return resp, nil

	case contracts.VerdictRequireApproval, contracts.VerdictRequireOwner:
		g.mu.Lock()
		g.held[req.CorrelationID] = &heldRequest{
			req:      req,
			verdict:  resp.Decision.Verdict,
			argsHash: resp.Firewall.ArgsHash,
			heldAt:   g.clock(),
		}
		g.mu.Unlock()
		resp.Status = StatusHeld
		g.emitAudit(EventRequestHeld, req.CorrelationID, map[string]interface{}{
			"tool":    resp.Decision.ToolName,
			"verdict": string(resp.Decision.Verdict),
		})
		return resp, nil
	}

	// Last line of defense before the executor.
	verdict := g.guard.Verify(ctx, guard.Input{
		Decision:         resp.Decision,
		Nonce:            input.Nonce,
		ScopeToken:       scopeToken(req.AppScope),
		ArgsHash:         input.ArgsHash,
		ApprovalArgsHash: approvalArgsHash,
		CorrelationID:    req.CorrelationID,
	})
	resp.Guard = &verdict
	if !verdict.Permitted {
		receipt := g.denials.Deny(governance.DenialGuard, resp.Decision.ToolName,
			req.ActorRole, "", verdict.FailedCheck+": "+verdict.Reason, req.CorrelationID)
		resp.Denial = &receipt
		g.recordDenial(ctx, "guard")
		g.emitAudit(EventGuardBlocked, req.CorrelationID, map[string]interface{}{
			"tool":   resp.Decision.ToolName,
			"check":  verdict.FailedCheck,
			"reason": verdict.Reason,
		})
		return resp, nil
	}

	if g.executor == nil {
		return resp, ErrExecutorUnassigned
	}
	outcome, err := g.executor.Execute(ctx, executor.Invocation{
		ToolName:      resp.Decision.ToolName,
		Args:          req.Args,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		return resp, fmt.Errorf("gateway: execute %s: %w", resp.Decision.ToolName, err)
	}
	resp.Execution = &outcome
	resp.Status = StatusExecuted
	g.emitAudit(EventToolExecuted, req.CorrelationID, map[string]interface{}{
		"tool":    outcome.ToolName,
		"success": fmt.Sprintf("%t", outcome.Success),
	})

	if g.trust != nil {
		kind := trust.KindExecution
		if cls.ActionType == contracts.ActionPropose {
			kind = trust.KindProposal
		}
		g.trust.ReportOutcome(outcome.Success, kind)
	}
	return resp, nil
}

func (g *Gateway) recordDecision(ctx context.Context, verdict string) {
	if g.telem != nil {
		g.telem.RecordDecision(ctx, verdict)
	}
}

func (g *Gateway) recordDenial(ctx context.Context, source string) {
	if g.telem != nil {
		g.telem.RecordDenial(ctx, source)
	}
}

// emitAudit appends best-effort; the sink counts its own failures and the
// pipeline keeps going.
func (g *Gateway) emitAudit(eventType, correlationID string, payload map[string]interface{}) {
	if g.audit == nil {
		return
	}
	payload["correlationId"] = correlationID
	if _, err := g.audit.Emit(eventType, payload); err != nil {
		g.logger.Warn("audit emit failed", "event", eventType, "error", err)
	}
}

func scopeToken(appScope string) string {
	return "scope:" + appScope + ":" + uuid.NewString()
}
