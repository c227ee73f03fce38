// Package spaces enforces per-space access policy for window operations.
// A space with no registered policy is open; registering a policy makes the
// space governed and every window operation inside it passes through the
// evaluator. Evaluation fails closed: a CEL error or a missing requirement
// denies the operation.
package spaces

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/identity"
)

// Operation is a governed window action inside a space.
type Operation string

const (
	OpAccess      Operation = "access"
	OpOpenWindow  Operation = "openWindow"
	OpFocusWindow Operation = "focusWindow"
	OpMoveWindow  Operation = "moveWindow"
)

// Permissions toggles the operations a space allows at all.
type Permissions struct {
	CanAccess      bool `json:"canAccess" yaml:"canAccess"`
	CanOpenWindow  bool `json:"canOpenWindow" yaml:"canOpenWindow"`
	CanFocusWindow bool `json:"canFocusWindow" yaml:"canFocusWindow"`
	CanMoveWindow  bool `json:"canMoveWindow" yaml:"canMoveWindow"`
}

func (p Permissions) allows(op Operation) bool {
	switch op {
	case OpAccess:
		return p.CanAccess
	case OpOpenWindow:
		return p.CanOpenWindow
	case OpFocusWindow:
		return p.CanFocusWindow
	case OpMoveWindow:
		return p.CanMoveWindow
	}
	return false
}

// SpacePolicy governs one space. Condition is an optional CEL expression
// evaluated with the requesting user's attributes; it must yield a bool.
type SpacePolicy struct {
	SpaceID          string              `json:"spaceId" yaml:"spaceId"`
	Permissions      Permissions         `json:"permissions" yaml:"permissions"`
	RequiredRole     contracts.ActorRole `json:"requiredRole,omitempty" yaml:"requiredRole,omitempty"`
	RequiredPolicies []string            `json:"requiredPolicies,omitempty" yaml:"requiredPolicies,omitempty"`
	Condition        string              `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Decision is the evaluator's answer for one operation.
type Decision struct {
	Allowed bool
	SpaceID string
	Op      Operation
	Reason  string
}

type compiledPolicy struct {
	policy  SpacePolicy
	program cel.Program
}

// Evaluator holds the registered space policies and the shared CEL env.
type Evaluator struct {
	mu       sync.RWMutex
	env      *cel.Env
	policies map[string]compiledPolicy
}

// NewEvaluator builds the CEL environment with the attributes conditions may
// reference.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("userId", types.StringType),
			decls.NewVariable("role", types.StringType),
			decls.NewVariable("stepUpActive", types.BoolType),
			decls.NewVariable("policies", types.NewListType(types.StringType)),
			decls.NewVariable("spaceId", types.StringType),
			decls.NewVariable("operation", types.StringType),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("spaces: cel env: %w", err)
	}
	return &Evaluator{env: env, policies: make(map[string]compiledPolicy)}, nil
}

// Register compiles and installs a space policy, replacing any previous
// policy for the same space. A condition that fails to compile rejects the
// whole registration so a governed space never runs with a broken guard.
func (e *Evaluator) Register(p SpacePolicy) error {
	if strings.TrimSpace(p.SpaceID) == "" {
		return fmt.Errorf("spaces: policy without spaceId")
	}

	var prg cel.Program
	if strings.TrimSpace(p.Condition) != "" {
		ast, issues := e.env.Compile(p.Condition)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("spaces: condition for %s: %w", p.SpaceID, issues.Err())
		}
		var err error
		prg, err = e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("spaces: program for %s: %w", p.SpaceID, err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies[p.SpaceID] = compiledPolicy{policy: p, program: prg}
	return nil
}

// Governed reports whether a space has a registered policy.
func (e *Evaluator) Governed(spaceID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.policies[spaceID]
	return ok
}

// Evaluate decides one operation for one user in one space. Unregistered
// spaces are open.
func (e *Evaluator) Evaluate(spaceID string, op Operation, sec identity.SecurityContext) Decision {
	e.mu.RLock()
	cp, governed := e.policies[spaceID]
	e.mu.RUnlock()

	d := Decision{SpaceID: spaceID, Op: op}
	if !governed {
		d.Allowed = true
		d.Reason = "space is ungoverned"
		return d
	}

	if !cp.policy.Permissions.allows(op) {
		d.Reason = fmt.Sprintf("operation %s disabled for space %s", op, spaceID)
		return d
	}
	if cp.policy.RequiredRole != "" &&
		contracts.RoleRank(sec.Role) < contracts.RoleRank(cp.policy.RequiredRole) {
		d.Reason = fmt.Sprintf("role %s below required %s", sec.Role, cp.policy.RequiredRole)
		return d
	}
	if missing := sec.MissingPolicies(cp.policy.RequiredPolicies); len(missing) > 0 {
		d.Reason = fmt.Sprintf("missing policies: %s", strings.Join(missing, ", "))
		return d
	}

	if cp.program != nil {
		input := map[string]interface{}{
			"userId":       sec.UserID,
			"role":         string(sec.Role),
			"stepUpActive": sec.StepUpActive,
			"policies":     sec.Policies,
			"spaceId":      spaceID,
			"operation":    string(op),
		}
		out, _, err := cp.program.Eval(input)
		if err != nil {
			d.Reason = fmt.Sprintf("condition error: %v", err)
			return d
		}
		allowed, ok := out.Value().(bool)
		if !ok || !allowed {
			d.Reason = "condition evaluated false"
			return d
		}
	}

	d.Allowed = true
	d.Reason = "all space checks passed"
	return d
}
