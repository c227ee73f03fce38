// Package policy is the second runtime defense: the fixed nine-rule chain
// every tool call passes on the gateway side. Rules run in a fixed order,
// every evaluated rule appends to the reason chain, and the first blocking
// rule decides the verdict.
package policy

import (
	"sort"
	"strings"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// Classification pairs the action type and risk grade derived from a tool
// name prefix.
type Classification struct {
	ActionType contracts.ActionType
	Risk       contracts.RiskLevel
}

// riskPrefixes maps tool-name prefixes to classifications. Matching picks
// the longest prefix so a more specific prefix always beats a shorter one.
var riskPrefixes = map[string]Classification{
	"delete_":   {contracts.ActionDelete, contracts.RiskCritical},
	"drop_":     {contracts.ActionDelete, contracts.RiskCritical},
	"purge_":    {contracts.ActionDelete, contracts.RiskCritical},
	"execute_":  {contracts.ActionExecute, contracts.RiskHigh},
	"install_":  {contracts.ActionExecute, contracts.RiskHigh},
	"update_":   {contracts.ActionExecute, contracts.RiskHigh},
	"apply_":    {contracts.ActionExecute, contracts.RiskHigh},
	"propose_":  {contracts.ActionPropose, contracts.RiskMedium},
	"draft_":    {contracts.ActionPropose, contracts.RiskMedium},
	"validate_": {contracts.ActionRead, contracts.RiskLow},
	"read_":     {contracts.ActionRead, contracts.RiskLow},
	"explain_":  {contracts.ActionRead, contracts.RiskLow},
	"search_":   {contracts.ActionRead, contracts.RiskLow},
	"list_":     {contracts.ActionRead, contracts.RiskLow},
	"get_":      {contracts.ActionRead, contracts.RiskLow},
}

// sortedPrefixes holds the prefixes longest-first for deterministic matching.
var sortedPrefixes = func() []string {
	out := make([]string, 0, len(riskPrefixes))
	for p := range riskPrefixes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}()

// ClassifyRisk grades a normalized tool name by longest-matching prefix.
// Unknown prefixes fail safe toward more restriction: ADMIN action, HIGH
// risk.
func ClassifyRisk(normalizedName string) Classification {
	for _, p := range sortedPrefixes {
		if strings.HasPrefix(normalizedName, p) {
			return riskPrefixes[p]
		}
	}
	return Classification{contracts.ActionAdmin, contracts.RiskHigh}
}
