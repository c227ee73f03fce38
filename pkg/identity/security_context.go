// Package identity holds the security context attached to kernel state and
// the step-up proof tokens that elevate it.
package identity

import (
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// SecurityContext describes who is logged in and what they may do. It is
// replaced wholesale on login/logout/step-up transitions, never mutated.
type SecurityContext struct {
	Authenticated bool                `json:"authenticated"`
	UserID        string              `json:"userId,omitempty"`
	Role          contracts.ActorRole `json:"role,omitempty"`
	StepUpActive  bool                `json:"stepUpActive"`
	StepUpExpiry  time.Time           `json:"stepUpExpiry,omitempty"`
	Policies      []string            `json:"policies,omitempty"`
}

// Anonymous returns the unauthenticated context.
func Anonymous() SecurityContext {
	return SecurityContext{}
}

// HasPolicy reports whether the context carries the named policy grant.
func (s SecurityContext) HasPolicy(policy string) bool {
	for _, p := range s.Policies {
		if p == policy {
			return true
		}
	}
	return false
}

// MissingPolicies returns the subset of required policies the context lacks.
func (s SecurityContext) MissingPolicies(required []string) []string {
	var missing []string
	for _, p := range required {
		if !s.HasPolicy(p) {
			missing = append(missing, p)
		}
	}
	return missing
}

// StepUpValid reports whether step-up elevation is active and unexpired.
func (s SecurityContext) StepUpValid(now time.Time) bool {
	return s.StepUpActive && now.Before(s.StepUpExpiry)
}

// WithStepUp returns a copy of the context elevated until expiry.
func (s SecurityContext) WithStepUp(expiry time.Time) SecurityContext {
	s.StepUpActive = true
	s.StepUpExpiry = expiry
	return s
}

// WithoutStepUp returns a copy of the context with elevation cleared.
func (s SecurityContext) WithoutStepUp() SecurityContext {
	s.StepUpActive = false
	s.StepUpExpiry = time.Time{}
	return s
}
