package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/nonce"
)

// ScopeResolver answers the scope questions the chain needs. The firewall's
// scope registry satisfies it.
type ScopeResolver interface {
	Allows(scopeID, normalizedName string) bool
	IsDestructive(normalizedName string) bool
	MaxAutoRisk(scopeID string) (contracts.RiskLevel, bool)
}

// Engine evaluates the nine-rule chain.
type Engine struct {
	scopes ScopeResolver
	rates  *RateWindow
	nonces nonce.Pool
	clock  func() time.Time
	logger *slog.Logger
}

// NewEngine wires the chain. The nonce pool must be the gateway pool; the
// worker guard owns its own.
func NewEngine(scopes ScopeResolver, rates *RateWindow, nonces nonce.Pool) *Engine {
	return &Engine{
		scopes: scopes,
		rates:  rates,
		nonces: nonces,
		clock:  time.Now,
		logger: slog.Default().With("component", "policy"),
	}
}

// WithClock overrides the clock for testing.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// Evaluate runs the chain in fixed order. Every evaluated rule appends one
// reason, pass or fail; the first blocking rule short-circuits with its
// verdict and later rules are never evaluated. Internal errors resolve to
// deny, never to a silent pass.
func (e *Engine) Evaluate(ctx context.Context, in contracts.PolicyInput) contracts.PolicyDecision {
	cls := ClassifyRisk(in.ToolName)
	dec := contracts.PolicyDecision{
		Verdict:       contracts.VerdictAllow,
		RiskLevel:     cls.Risk,
		ToolName:      in.ToolName,
		CorrelationID: in.CorrelationID,
		DecidedAt:     e.clock(),
	}
	passRule := func(id contracts.RuleID, msg string) {
		dec.Reasons = append(dec.Reasons, contracts.Reason{RuleID: id, Message: msg})
	}
	block := func(id contracts.RuleID, verdict contracts.Verdict, msg string) contracts.PolicyDecision {
		dec.Reasons = append(dec.Reasons, contracts.Reason{RuleID: id, Message: msg, Blocking: true})
		dec.Verdict = verdict
		e.logger.Info("policy blocked", "tool", in.ToolName, "rule", id, "verdict", verdict, "correlationId", in.CorrelationID)
		return dec
	}

	// 1. Scope allowlist.
	if !e.scopes.Allows(in.AppScope, in.ToolName) {
		return block(contracts.RuleScopeCheck, contracts.VerdictDeny,
			fmt.Sprintf("tool %q not permitted in scope %q", in.ToolName, in.AppScope))
	}
	passRule(contracts.RuleScopeCheck, fmt.Sprintf("tool permitted in scope %q", in.AppScope))

	// 2. Destructive denylist: owners only.
	if e.scopes.IsDestructive(in.ToolName) {
		if contracts.RoleRank(in.ActorRole) < contracts.RoleRank(contracts.RoleOwner) {
			return block(contracts.RuleDestructive, contracts.VerdictDeny,
				fmt.Sprintf("destructive tool %q requires role owner, actor is %s", in.ToolName, in.ActorRole))
		}
		passRule(contracts.RuleDestructive, "destructive tool permitted for owner")
	} else {
		passRule(contracts.RuleDestructive, "tool is not destructive")
	}

	// 3. Role requirement for the action type.
	minRole := contracts.MinRoleFor(in.ActionType)
	if contracts.RoleRank(in.ActorRole) < contracts.RoleRank(minRole) {
		return block(contracts.RuleRoleCheck, contracts.VerdictDeny,
			fmt.Sprintf("action %s requires at least role %s, actor is %s", in.ActionType, minRole, in.ActorRole))
	}
	passRule(contracts.RuleRoleCheck, fmt.Sprintf("role %s satisfies minimum %s", in.ActorRole, minRole))

	// 4. Trailing-window rate limit.
	if !e.rates.Allow(in.ActionType) {
		return block(contracts.RuleRateLimit, contracts.VerdictDeny,
			fmt.Sprintf("rate limit reached for action %s", in.ActionType))
	}
	passRule(contracts.RuleRateLimit, fmt.Sprintf("within rate budget for %s", in.ActionType))

	// 5. Nonce anti-replay against the gateway pool.
	fresh, err := e.nonces.Use(ctx, in.Nonce)
	if err != nil {
		return block(contracts.RuleNonceCheck, contracts.VerdictDeny,
			fmt.Sprintf("nonce check failed: %v", err))
	}
	if !fresh {
		return block(contracts.RuleNonceCheck, contracts.VerdictDeny,
			"nonce already used")
	}
	passRule(contracts.RuleNonceCheck, "nonce is fresh")

	// 6. Args-hash invariant when an approval exists.
	if in.ApprovalArgsHash != "" && in.ApprovalArgsHash != in.ArgsHash {
		return block(contracts.RuleArgsHashCheck, contracts.VerdictDeny,
			fmt.Sprintf("args hash %s does not match approved %s", in.ArgsHash, in.ApprovalArgsHash))
	}
	passRule(contracts.RuleArgsHashCheck, "args hash consistent with approval")

	// 7. Production execute gate.
	if in.Environment == contracts.EnvProduction &&
		in.ActionType == contracts.ActionExecute &&
		contracts.RoleRank(in.ActorRole) < contracts.RoleRank(contracts.RoleOwner) {
		return block(contracts.RuleProdExecuteGate, contracts.VerdictRequireOwner,
			"EXECUTE in production requires the owner")
	}
	passRule(contracts.RuleProdExecuteGate, "production execute gate passed")

	// 8. High-risk gate against the scope's auto-approval ceiling.
	maxAuto, ok := e.scopes.MaxAutoRisk(in.AppScope)
	if !ok {
		maxAuto = contracts.RiskLow
	}
	switch {
	case contracts.RiskRank(cls.Risk) <= contracts.RiskRank(maxAuto):
		passRule(contracts.RuleRiskGate, fmt.Sprintf("risk %s within scope ceiling %s", cls.Risk, maxAuto))
	case in.ApprovalArgsHash != "":
		passRule(contracts.RuleRiskGate, fmt.Sprintf("risk %s covered by prior approval", cls.Risk))
	default:
		return block(contracts.RuleRiskGate, contracts.VerdictRequireApproval,
			fmt.Sprintf("risk %s exceeds scope ceiling %s and no approval is present", cls.Risk, maxAuto))
	}

	// 9. All clear.
	passRule(contracts.RuleAllClear, "all rules passed")
	return dec
}
