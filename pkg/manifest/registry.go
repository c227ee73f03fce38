package manifest

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/unicode/norm"
)

// ErrorKind discriminates the distinct consistency-gate failures.
type ErrorKind string

const (
	ErrMissingCertTier      ErrorKind = "missing_certification_tier"
	ErrMissingStepUpMessage ErrorKind = "missing_stepup_message"
	ErrForbiddenWindowMode  ErrorKind = "forbidden_window_mode"
	ErrDockWithoutUI        ErrorKind = "dock_without_ui"
	ErrUIWindowModeMismatch ErrorKind = "ui_window_mode_mismatch"
	ErrTitleLength          ErrorKind = "title_length"
	ErrMissingIcon          ErrorKind = "missing_icon"
	ErrDuplicateID          ErrorKind = "duplicate_id"
	ErrBlockedID            ErrorKind = "blocked_id"
	ErrInvalidVersion       ErrorKind = "invalid_version"
)

const (
	titleMinLen = 2
	titleMaxLen = 30
)

// Reserved ids and substrings that manifests may never claim.
var (
	blockedIDs        = map[string]bool{"system": true, "kernel": true, "root": true}
	blockedSubstrings = []string{"__", "..", " "}
)

// ValidationError is one consistency-gate finding.
type ValidationError struct {
	ManifestID string    `json:"manifestId"`
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
}

// ValidationResult aggregates the gate's findings for the whole registry.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// Registry is the validated capability manifest table. Load never fails;
// validation findings are reported, not fatal.
type Registry struct {
	mu        sync.RWMutex
	manifests map[string]Manifest
	order     []string
	result    ValidationResult
}

// NewRegistry loads manifests and runs the consistency gate once.
func NewRegistry(manifests []Manifest) *Registry {
	r := &Registry{manifests: make(map[string]Manifest, len(manifests))}
	var errs []ValidationError

	for _, m := range manifests {
		errs = append(errs, validateManifest(m)...)
		if _, dup := r.manifests[m.ID]; dup {
			errs = append(errs, ValidationError{
				ManifestID: m.ID,
				Kind:       ErrDuplicateID,
				Message:    fmt.Sprintf("manifest id %q registered more than once", m.ID),
			})
			continue
		}
		r.manifests[m.ID] = m
		r.order = append(r.order, m.ID)
	}

	r.result = ValidationResult{Valid: len(errs) == 0, Errors: errs}
	return r
}

func validateManifest(m Manifest) []ValidationError {
	var errs []ValidationError
	add := func(kind ErrorKind, format string, args ...interface{}) {
		errs = append(errs, ValidationError{
			ManifestID: m.ID,
			Kind:       kind,
			Message:    fmt.Sprintf(format, args...),
		})
	}

	if m.CertificationTier == "" {
		add(ErrMissingCertTier, "certification tier is required")
	}
	if m.RequiresStepUp && strings.TrimSpace(m.StepUpMessage) == "" {
		add(ErrMissingStepUpMessage, "requiresStepUp set without a stepUpMessage")
	}
	if m.WindowMode == WindowModeNone {
		add(ErrForbiddenWindowMode, "windowMode %q is forbidden", WindowModeNone)
	}
	if m.ShowInDock && !m.HasUI {
		add(ErrDockWithoutUI, "showInDock requires hasUi")
	}
	if m.WindowMode != WindowModeNone {
		if m.HasUI && !m.uiWindowMode() {
			add(ErrUIWindowModeMismatch, "UI capability must use single/multi/multiByContext, got %q", m.WindowMode)
		}
		if !m.HasUI && m.WindowMode != WindowModeBackgroundOnly {
			add(ErrUIWindowModeMismatch, "non-UI capability must use backgroundOnly, got %q", m.WindowMode)
		}
	}

	// Titles are NFC-normalized before counting so composed and decomposed
	// forms measure the same.
	title := norm.NFC.String(strings.TrimSpace(m.Title))
	if n := utf8.RuneCountInString(title); n < titleMinLen || n > titleMaxLen {
		add(ErrTitleLength, "title length %d outside [%d,%d]", n, titleMinLen, titleMaxLen)
	}
	if strings.TrimSpace(m.Icon) == "" {
		add(ErrMissingIcon, "icon is required")
	}

	if blockedIDs[m.ID] {
		add(ErrBlockedID, "id %q is reserved", m.ID)
	}
	for _, sub := range blockedSubstrings {
		if strings.Contains(m.ID, sub) {
			add(ErrBlockedID, "id %q contains blocked pattern %q", m.ID, sub)
			break
		}
	}

	if m.Version != "" {
		if _, err := semver.NewVersion(m.Version); err != nil {
			add(ErrInvalidVersion, "version %q is not valid semver: %v", m.Version, err)
		}
	}
	return errs
}

// Validate returns the consistency-gate result computed at load.
func (r *Registry) Validate() ValidationResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := ValidationResult{Valid: r.result.Valid}
	out.Errors = append(out.Errors, r.result.Errors...)
	return out
}

// IsValid reports whether the whole registry passed the gate.
func (r *Registry) IsValid() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result.Valid
}

// Get looks up a manifest by id.
func (r *Registry) Get(id string) (Manifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[id]
	return m, ok
}

// List returns all manifests in registration order.
func (r *Registry) List() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Manifest, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.manifests[id])
	}
	return out
}

// DockList returns the manifests eligible for the dock. Callers should have
// checked IsValid first; an invalid registry may list miswired entries.
func (r *Registry) DockList() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Manifest
	for _, id := range r.order {
		m := r.manifests[id]
		if m.ShowInDock && m.HasUI {
			out = append(out, m)
		}
	}
	return out
}
