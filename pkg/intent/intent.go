// Package intent defines the typed requests that drive the capability/window
// kernel. An Intent is immutable, carries a correlation id for tracing, and
// is consumed exactly once by the kernel dispatcher.
package intent

import (
	"github.com/google/uuid"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// Type tags the intent union.
type Type string

const (
	TypeOpenCapability    Type = "OPEN_CAPABILITY"
	TypeCloseWindow       Type = "CLOSE_WINDOW"
	TypeFocusWindow       Type = "FOCUS_WINDOW"
	TypeMinimizeWindow    Type = "MINIMIZE_WINDOW"
	TypeRestoreWindow     Type = "RESTORE_WINDOW"
	TypeFocusNext         Type = "FOCUS_NEXT"
	TypeFocusPrev         Type = "FOCUS_PREV"
	TypeFocusByIndex      Type = "FOCUS_BY_INDEX"
	TypeSwitchSpace       Type = "SWITCH_SPACE"
	TypeMoveWindowToSpace Type = "MOVE_WINDOW_TO_SPACE"
	TypeRestoreSession    Type = "RESTORE_SESSION"
	TypeStepUpRequest     Type = "STEP_UP_REQUEST"
	TypeStepUpComplete    Type = "STEP_UP_COMPLETE"
	TypeStepUpCancel      Type = "STEP_UP_CANCEL"
	TypeLogin             Type = "LOGIN"
	TypeLogout            Type = "LOGOUT"
	TypeLock              Type = "LOCK"
	TypeUnlock            Type = "UNLOCK"
)

// Payload carries the per-type parameters of an intent. Only the fields
// relevant to the intent's type are set.
type Payload struct {
	CapabilityID string              `json:"capabilityId,omitempty"`
	WindowID     string              `json:"windowId,omitempty"`
	SpaceID      string              `json:"spaceId,omitempty"`
	ContextID    string              `json:"contextId,omitempty"`
	Index        int                 `json:"index,omitempty"`
	UserID       string              `json:"userId,omitempty"`
	Role         contracts.ActorRole `json:"role,omitempty"`
	Policies     []string            `json:"policies,omitempty"`
	StepUpToken  string              `json:"stepUpToken,omitempty"`
}

// Intent is a typed request to change kernel state.
type Intent struct {
	Type          Type    `json:"type"`
	CorrelationID string  `json:"correlationId"`
	Payload       Payload `json:"payload"`
}

// New creates an intent with a fresh correlation id.
func New(t Type, p Payload) Intent {
	return Intent{
		Type:          t,
		CorrelationID: uuid.New().String(),
		Payload:       p,
	}
}

// OpenCapability requests activation of a capability, optionally bound to a
// context (one window per (capability, context) pair in multiByContext mode).
func OpenCapability(capabilityID, contextID string) Intent {
	return New(TypeOpenCapability, Payload{CapabilityID: capabilityID, ContextID: contextID})
}

// CloseWindow requests destruction of a window.
func CloseWindow(windowID string) Intent {
	return New(TypeCloseWindow, Payload{WindowID: windowID})
}

// FocusWindow requests focus for a window.
func FocusWindow(windowID string) Intent {
	return New(TypeFocusWindow, Payload{WindowID: windowID})
}

// MinimizeWindow requests minimization of a window.
func MinimizeWindow(windowID string) Intent {
	return New(TypeMinimizeWindow, Payload{WindowID: windowID})
}

// RestoreWindow requests restoration of a minimized window.
func RestoreWindow(windowID string) Intent {
	return New(TypeRestoreWindow, Payload{WindowID: windowID})
}

// SwitchSpace requests activation of another space.
func SwitchSpace(spaceID string) Intent {
	return New(TypeSwitchSpace, Payload{SpaceID: spaceID})
}

// MoveWindowToSpace requests relocation of a window into another space.
func MoveWindowToSpace(windowID, spaceID string) Intent {
	return New(TypeMoveWindowToSpace, Payload{WindowID: windowID, SpaceID: spaceID})
}

// Login establishes an authenticated security context.
func Login(userID string, role contracts.ActorRole, policies []string) Intent {
	return New(TypeLogin, Payload{UserID: userID, Role: role, Policies: policies})
}

// StepUpComplete presents a step-up proof token for the pending challenge.
func StepUpComplete(token string) Intent {
	return New(TypeStepUpComplete, Payload{StepUpToken: token})
}
