package kernel

import "fmt"

// Explain builds the ordered human-readable reason chain for a decision.
// It reads only the decision value, so a stored decision reproduces the
// identical explanation at any later time.
func Explain(d Decision) []string {
	out := []string{
		fmt.Sprintf("intent %s resolved as %s", d.IntentType, d.Outcome),
	}
	if d.Domain != "" {
		out = append(out, fmt.Sprintf("policy domain: %s", d.Domain))
	}
	if d.FailedRule != "" {
		out = append(out, fmt.Sprintf("failed rule: %s", d.FailedRule))
	}
	out = append(out, d.Reasons...)
	return out
}
