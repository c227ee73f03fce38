package policy

import (
	"fmt"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// Explain builds the ordered human-readable chain for a policy decision from
// the decision value alone, so a stored decision reproduces the identical
// explanation later.
func Explain(d contracts.PolicyDecision) []string {
	out := []string{
		fmt.Sprintf("tool %s: verdict %s (risk %s)", d.ToolName, d.Verdict, d.RiskLevel),
	}
	for _, r := range d.Reasons {
		status := "pass"
		if r.Blocking {
			status = "BLOCK"
		}
		out = append(out, fmt.Sprintf("%s [%s]: %s", r.RuleID, status, r.Message))
	}
	return out
}
