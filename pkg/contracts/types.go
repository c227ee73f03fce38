// Package contracts defines the shared decision vocabulary used across the
// governance chain: actor roles, action types, risk levels, policy inputs
// and policy decisions. These types cross package boundaries and must stay
// stable; every audit record ultimately serializes them.
package contracts

import "time"

// ActorRole identifies who is asking for an action.
type ActorRole string

const (
	RoleUser   ActorRole = "user"
	RoleAdmin  ActorRole = "admin"
	RoleOwner  ActorRole = "owner"
	RoleSystem ActorRole = "system"
)

// RoleRank returns the ordering position of a role within the hierarchy
// user < admin < owner. RoleSystem is treated as owner.
func RoleRank(r ActorRole) int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleOwner, RoleSystem:
		return 3
	default:
		return 0
	}
}

// ActionType classifies what kind of effect a tool call has.
type ActionType string

const (
	ActionRead    ActionType = "READ"
	ActionPropose ActionType = "PROPOSE"
	ActionExecute ActionType = "EXECUTE"
	ActionDelete  ActionType = "DELETE"
	ActionAdmin   ActionType = "ADMIN"
)

// MinRoleFor returns the minimum actor role allowed to perform an action type.
func MinRoleFor(a ActionType) ActorRole {
	switch a {
	case ActionRead, ActionPropose:
		return RoleUser
	case ActionExecute:
		return RoleAdmin
	case ActionDelete, ActionAdmin:
		return RoleOwner
	default:
		return RoleOwner
	}
}

// RiskLevel grades a tool call's blast radius.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskRank returns the ordering position of a risk level (LOW lowest).
func RiskRank(r RiskLevel) int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 4
	}
}

// Environment names the deployment environment a call runs in.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Verdict is the outcome of a policy evaluation.
type Verdict string

const (
	VerdictAllow           Verdict = "ALLOW"
	VerdictDeny            Verdict = "DENY"
	VerdictRequireApproval Verdict = "REQUIRE_APPROVAL"
	VerdictRequireOwner    Verdict = "REQUIRE_OWNER"
)

// RuleID identifies one rule in the runtime policy chain.
type RuleID string

const (
	RuleScopeCheck      RuleID = "SCOPE_CHECK"
	RuleDestructive     RuleID = "DESTRUCTIVE_CHECK"
	RuleRoleCheck       RuleID = "ROLE_CHECK"
	RuleRateLimit       RuleID = "RATE_LIMIT"
	RuleNonceCheck      RuleID = "NONCE_CHECK"
	RuleArgsHashCheck   RuleID = "ARGS_HASH_CHECK"
	RuleProdExecuteGate RuleID = "PROD_EXECUTE_GATE"
	RuleRiskGate        RuleID = "RISK_GATE"
	RuleAllClear        RuleID = "ALL_CLEAR"
)

// PolicyInput is everything the runtime policy engine needs to decide.
// The args hash binds the decision to exact arguments; the nonce binds it
// to a single invocation.
type PolicyInput struct {
	ToolName         string      `json:"toolName"`
	ActionType       ActionType  `json:"actionType"`
	AppScope         string      `json:"appScope"`
	ActorRole        ActorRole   `json:"actorRole"`
	Environment      Environment `json:"environment"`
	Nonce            string      `json:"nonce"`
	ArgsHash         string      `json:"argsHash"`
	ApprovalArgsHash string      `json:"approvalArgsHash,omitempty"`
	CorrelationID    string      `json:"correlationId"`
	Timestamp        time.Time   `json:"timestamp"`
}

// Reason is one entry in a decision's ordered reason chain.
type Reason struct {
	RuleID   RuleID `json:"ruleId"`
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// PolicyDecision is the result of evaluating the rule chain. Reasons hold one
// entry per evaluated rule, pass or fail, in evaluation order; the first
// blocking entry is the rule that decided a non-ALLOW verdict.
type PolicyDecision struct {
	Verdict       Verdict   `json:"verdict"`
	Reasons       []Reason  `json:"reasons"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	ToolName      string    `json:"toolName"`
	CorrelationID string    `json:"correlationId"`
	DecidedAt     time.Time `json:"decidedAt"`
}

// BlockingReason returns the first blocking reason, if any.
func (d PolicyDecision) BlockingReason() (Reason, bool) {
	for _, r := range d.Reasons {
		if r.Blocking {
			return r, true
		}
	}
	return Reason{}, false
}

// TrustState is a snapshot of the trust engine's reputation ledger.
type TrustState struct {
	Score             float64 `json:"score"`
	Tier              string  `json:"tier"`
	SuccessfulActions int     `json:"successfulActions"`
	FailedActions     int     `json:"failedActions"`
	UserRejections    int     `json:"userRejections"`
}
