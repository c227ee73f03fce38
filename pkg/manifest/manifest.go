// Package manifest holds the static capability descriptors and the registry
// that validates them at load time. The consistency gate is a linter for
// manifest authoring errors, not a runtime defense: a failing registry still
// loads and serves lookups, but callers must check IsValid before trusting
// dock or finder listings.
package manifest

// WindowMode describes how a capability's windows are created.
type WindowMode string

const (
	WindowModeSingle         WindowMode = "single"
	WindowModeMulti          WindowMode = "multi"
	WindowModeMultiByContext WindowMode = "multiByContext"
	WindowModeBackgroundOnly WindowMode = "backgroundOnly"
	// WindowModeNone is a forbidden authoring value; the gate rejects it.
	WindowModeNone WindowMode = "none"
)

// CertificationTier grades how hardened a capability is.
type CertificationTier string

const (
	CertNone       CertificationTier = "NONE"
	CertBasic      CertificationTier = "BASIC"
	CertVerified   CertificationTier = "VERIFIED"
	CertProduction CertificationTier = "PRODUCTION"
)

// Manifest is the static descriptor of one capability.
type Manifest struct {
	ID                string            `json:"id" yaml:"id"`
	Title             string            `json:"title" yaml:"title"`
	Icon              string            `json:"icon" yaml:"icon"`
	Version           string            `json:"version,omitempty" yaml:"version,omitempty"`
	HasUI             bool              `json:"hasUi" yaml:"hasUi"`
	WindowMode        WindowMode        `json:"windowMode" yaml:"windowMode"`
	RequiredPolicies  []string          `json:"requiredPolicies,omitempty" yaml:"requiredPolicies,omitempty"`
	RequiresStepUp    bool              `json:"requiresStepUp" yaml:"requiresStepUp"`
	StepUpMessage     string            `json:"stepUpMessage,omitempty" yaml:"stepUpMessage,omitempty"`
	Dependencies      []string          `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	ContextsSupported []string          `json:"contextsSupported,omitempty" yaml:"contextsSupported,omitempty"`
	ShowInDock        bool              `json:"showInDock" yaml:"showInDock"`
	CertificationTier CertificationTier `json:"certificationTier" yaml:"certificationTier"`
}

// UIWindowModes are the window modes valid for capabilities with a UI.
func (m Manifest) uiWindowMode() bool {
	switch m.WindowMode {
	case WindowModeSingle, WindowModeMulti, WindowModeMultiByContext:
		return true
	}
	return false
}
