// Package kernel is the capability/window state machine. All state lives in
// one SystemState value owned by the dispatcher; mutation happens only through
// the pure reducer, and every dispatch replaces the state wholesale. The
// dispatcher is the impure shell: it runs the policy gates, generates ids,
// emits events, and feeds actions to the reducer.
package kernel

import (
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/identity"
)

// WindowState is the lifecycle state of one window.
type WindowState string

const (
	WindowActive    WindowState = "active"
	WindowMinimized WindowState = "minimized"
	WindowHidden    WindowState = "hidden"
)

// CognitiveMode is derived from the window set and focus pointer. Locked is
// the override mode while the session is locked.
type CognitiveMode string

const (
	ModeCalm      CognitiveMode = "calm"
	ModeFocused   CognitiveMode = "focused"
	ModeMultitask CognitiveMode = "multitask"
	ModeLocked    CognitiveMode = "locked"
)

// Window is one capability window. Focus is derived from
// SystemState.FocusedWindowID, never stored per window.
type Window struct {
	ID           string      `json:"id"`
	CapabilityID string      `json:"capabilityId"`
	State        WindowState `json:"state"`
	SpaceID      string      `json:"spaceId"`
	ZIndex       int         `json:"zIndex"`
	ContextID    string      `json:"contextId,omitempty"`
}

// PendingStepUp is the stored challenge while elevation is pending. The
// original correlation id is kept so a completed step-up replays the original
// intent under the same id.
type PendingStepUp struct {
	CapabilityID  string    `json:"capabilityId"`
	ContextID     string    `json:"contextId,omitempty"`
	CorrelationID string    `json:"correlationId"`
	Message       string    `json:"message"`
	IssuedAt      time.Time `json:"issuedAt"`
}

// SystemState is the single source of truth for the kernel.
type SystemState struct {
	Windows         map[string]Window        `json:"windows"`
	FocusedWindowID string                   `json:"focusedWindowId,omitempty"`
	CognitiveMode   CognitiveMode            `json:"cognitiveMode"`
	Security        identity.SecurityContext `json:"security"`
	ActiveSpaceID   string                   `json:"activeSpaceId"`
	PendingStepUp   *PendingStepUp           `json:"pendingStepUp,omitempty"`
	ContextStack    []string                 `json:"contextStack,omitempty"`
	Locked          bool                     `json:"locked"`
	NextZIndex      int                      `json:"nextZIndex"`
}

// NewState returns the boot state: no windows, anonymous session, the given
// space active.
func NewState(activeSpaceID string) SystemState {
	return SystemState{
		Windows:       map[string]Window{},
		CognitiveMode: ModeCalm,
		Security:      identity.Anonymous(),
		ActiveSpaceID: activeSpaceID,
		NextZIndex:    1,
	}
}

// clone deep-copies the state so the reducer never aliases the previous value.
func (s SystemState) clone() SystemState {
	out := s
	out.Windows = make(map[string]Window, len(s.Windows))
	for id, w := range s.Windows {
		out.Windows[id] = w
	}
	out.ContextStack = append([]string(nil), s.ContextStack...)
	if s.PendingStepUp != nil {
		p := *s.PendingStepUp
		out.PendingStepUp = &p
	}
	return out
}

// DeriveCognitiveMode recomputes the mode from the state alone. Calm when no
// window is both active and focused, multitask when two or more active
// windows exist with a valid focus, focused when exactly one does. Minimized
// and hidden windows never count.
func DeriveCognitiveMode(s SystemState) CognitiveMode {
	if s.Locked {
		return ModeLocked
	}
	fw, ok := s.Windows[s.FocusedWindowID]
	if !ok || fw.State != WindowActive {
		return ModeCalm
	}
	active := 0
	for _, w := range s.Windows {
		if w.State == WindowActive {
			active++
		}
	}
	if active >= 2 {
		return ModeMultitask
	}
	return ModeFocused
}
