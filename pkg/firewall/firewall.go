// Package firewall is the first of the three runtime defenses on the tool
// path. It normalizes and hashes the call, enforces the payload cap and the
// per-scope allowlist, flags destructive tools, and validates arguments
// against an optional JSON Schema. The firewall never makes the final
// blocking decision on destructive tools; the policy engine does.
package firewall

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/canonicalize"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// MaxPayloadBytes caps the canonical serialized argument payload.
const MaxPayloadBytes = 64 * 1024

// Check names, in evaluation order. Every executed check lands in the
// result's ordered list for audit.
const (
	CheckNormalize   = "normalize"
	CheckArgsHash    = "args_hash"
	CheckPayloadSize = "payload_size"
	CheckScope       = "scope_allowlist"
	CheckDestructive = "destructive_flag"
	CheckSchema      = "schema_validation"
	CheckApproval    = "approval_hash"
)

// CheckEntry records one executed firewall check.
type CheckEntry struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Result is the firewall's answer for one tool call.
type Result struct {
	Allowed        bool         `json:"allowed"`
	NormalizedName string       `json:"normalizedName"`
	ArgsHash       string       `json:"argsHash"`
	Destructive    bool         `json:"destructive"`
	Checks         []CheckEntry `json:"checks"`
	Reason         string       `json:"reason,omitempty"`
}

// Scope is one app scope's tool surface. Patterns ending in '*' match by
// prefix, everything else matches exactly.
type Scope struct {
	ID               string              `json:"id" yaml:"id"`
	AllowedPatterns  []string            `json:"allowedPatterns" yaml:"allowedPatterns"`
	MaxAutoRiskLevel contracts.RiskLevel `json:"maxAutoRiskLevel" yaml:"maxAutoRiskLevel"`
}

// matcher is a scope's patterns compiled once at registration: exact names in
// a set, prefix patterns in a slice. Deny-by-default falls out of both being
// empty.
type matcher struct {
	scope    Scope
	exact    map[string]bool
	prefixes []string
}

func compile(s Scope) matcher {
	m := matcher{scope: s, exact: make(map[string]bool)}
	for _, p := range s.AllowedPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasSuffix(p, "*") {
			m.prefixes = append(m.prefixes, strings.TrimSuffix(p, "*"))
			continue
		}
		m.exact[p] = true
	}
	return m
}

func (m matcher) matches(name string) bool {
	if m.exact[name] {
		return true
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Firewall holds the compiled scope matchers, the destructive denylist, and
// per-tool argument schemas.
type Firewall struct {
	mu          sync.RWMutex
	scopes      map[string]matcher
	destructive matcher
	schemas     map[string]*jsonschema.Schema
}

// DefaultDestructivePatterns flag tools that remove data.
var DefaultDestructivePatterns = []string{"delete_*", "drop_*", "purge_*"}

// New creates a firewall with the default destructive denylist and no scopes
// registered. An unknown scope denies everything.
func New() *Firewall {
	return &Firewall{
		scopes:      make(map[string]matcher),
		destructive: compile(Scope{AllowedPatterns: DefaultDestructivePatterns}),
		schemas:     make(map[string]*jsonschema.Schema),
	}
}

// RegisterScope compiles and installs one scope, replacing any previous
// registration under the same id.
func (f *Firewall) RegisterScope(s Scope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scopes[s.ID] = compile(s)
}

// SetDestructivePatterns replaces the destructive denylist.
func (f *Firewall) SetDestructivePatterns(patterns []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destructive = compile(Scope{AllowedPatterns: patterns})
}

// SetSchema installs a JSON Schema the named tool's arguments must satisfy.
func (f *Firewall) SetSchema(toolName string, schema string) error {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := fmt.Sprintf("https://schemas.local/firewall/%s.schema.json", toolName)
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return fmt.Errorf("firewall: schema load for %s: %w", toolName, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return fmt.Errorf("firewall: schema compile for %s: %w", toolName, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemas[strings.ToLower(strings.TrimSpace(toolName))] = compiled
	return nil
}

// Scope returns the registered scope descriptor.
func (f *Firewall) Scope(id string) (Scope, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.scopes[id]
	return m.scope, ok
}

// Allows reports whether a (already normalized) tool name is permitted in a
// scope. Unknown scopes deny. The policy engine uses this as its scope rule.
func (f *Firewall) Allows(scopeID, normalizedName string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.scopes[scopeID]
	return ok && m.matches(normalizedName)
}

// MaxAutoRisk returns the highest risk level a scope may run without
// approval. The second return is false for unknown scopes.
func (f *Firewall) MaxAutoRisk(scopeID string) (contracts.RiskLevel, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.scopes[scopeID]
	if !ok {
		return "", false
	}
	return m.scope.MaxAutoRiskLevel, true
}

// IsDestructive reports whether a normalized tool name is on the destructive
// denylist.
func (f *Firewall) IsDestructive(normalizedName string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.destructive.matches(normalizedName)
}

// Check runs the ordered firewall checks for one tool call. The result
// carries every executed check; evaluation stops at the first rejection.
func (f *Firewall) Check(toolName string, args map[string]interface{}, appScope, approvalArgsHash string) Result {
	res := Result{}
	fail := func(name, detail string) Result {
		res.Checks = append(res.Checks, CheckEntry{Name: name, Detail: detail})
		res.Reason = detail
		return res
	}
	pass := func(name, detail string) {
		res.Checks = append(res.Checks, CheckEntry{Name: name, Passed: true, Detail: detail})
	}

	res.NormalizedName = strings.ToLower(strings.TrimSpace(toolName))
	if res.NormalizedName == "" {
		return fail(CheckNormalize, "empty tool name")
	}
	pass(CheckNormalize, res.NormalizedName)

	if args == nil {
		args = map[string]interface{}{}
	}
	payload, err := canonicalize.Canonical(args)
	if err != nil {
		return fail(CheckArgsHash, fmt.Sprintf("arguments not canonicalizable: %v", err))
	}
	res.ArgsHash = canonicalize.HashBytes(payload)[:canonicalize.ArgsHashLength]
	pass(CheckArgsHash, res.ArgsHash)

	if len(payload) > MaxPayloadBytes {
		return fail(CheckPayloadSize, fmt.Sprintf("payload %d bytes exceeds cap %d", len(payload), MaxPayloadBytes))
	}
	pass(CheckPayloadSize, fmt.Sprintf("%d bytes", len(payload)))

	f.mu.RLock()
	m, scopeKnown := f.scopes[appScope]
	destructive := f.destructive.matches(res.NormalizedName)
	schema := f.schemas[res.NormalizedName]
	f.mu.RUnlock()

	if !scopeKnown {
		return fail(CheckScope, fmt.Sprintf("unknown scope %q", appScope))
	}
	if !m.matches(res.NormalizedName) {
		return fail(CheckScope, fmt.Sprintf("tool %q not allowed in scope %q", res.NormalizedName, appScope))
	}
	pass(CheckScope, appScope)

	// Destructive tools are flagged, never blocked here.
	res.Destructive = destructive
	pass(CheckDestructive, fmt.Sprintf("destructive=%t", destructive))

	if schema != nil {
		if err := schema.Validate(normalizeForSchema(args)); err != nil {
			return fail(CheckSchema, fmt.Sprintf("schema validation failed: %v", err))
		}
		pass(CheckSchema, "ok")
	}

	if approvalArgsHash != "" && approvalArgsHash != res.ArgsHash {
		return fail(CheckApproval, fmt.Sprintf("arguments changed after approval: approved %s, got %s", approvalArgsHash, res.ArgsHash))
	}
	if approvalArgsHash != "" {
		pass(CheckApproval, "hash matches approval")
	}

	res.Allowed = true
	return res
}

// normalizeForSchema converts args to plain JSON types so the validator sees
// the same shapes a decoded JSON document would have.
func normalizeForSchema(args map[string]interface{}) interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
