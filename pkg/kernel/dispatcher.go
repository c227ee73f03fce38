package kernel

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/events"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/identity"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/intent"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/manifest"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/spaces"
)

// Outcome classifies the result of one dispatched intent.
type Outcome string

const (
	OutcomeApplied       Outcome = "applied"
	OutcomeDenied        Outcome = "denied"
	OutcomeRequireStepUp Outcome = "require_stepup"
)

// Decision is the structured result of Emit. Denials are data, not errors,
// so callers can react programmatically; Explain reconstructs the full
// human-readable chain from this value alone.
type Decision struct {
	Allowed       bool        `json:"allowed"`
	Outcome       Outcome     `json:"outcome"`
	Domain        string      `json:"domain,omitempty"`
	FailedRule    string      `json:"failedRule,omitempty"`
	Reasons       []string    `json:"reasons,omitempty"`
	IntentType    intent.Type `json:"intentType"`
	CorrelationID string      `json:"correlationId"`
	WindowID      string      `json:"windowId,omitempty"`
}

// Dispatcher turns intents into reducer actions behind the policy gates. One
// mutex serializes dispatches so reducer applications never interleave.
type Dispatcher struct {
	mu       sync.Mutex
	state    SystemState
	registry *manifest.Registry
	spaces   *spaces.Evaluator
	bus      *events.Bus
	stepUp   *identity.StepUpIssuer
	clock    func() time.Time
	logger   *slog.Logger
}

// NewDispatcher wires the kernel. The registry and space evaluator are
// consulted on every dispatch; the bus receives one event per transition.
func NewDispatcher(reg *manifest.Registry, ev *spaces.Evaluator, bus *events.Bus, stepUp *identity.StepUpIssuer, activeSpaceID string) *Dispatcher {
	return &Dispatcher{
		state:    NewState(activeSpaceID),
		registry: reg,
		spaces:   ev,
		bus:      bus,
		stepUp:   stepUp,
		clock:    time.Now,
		logger:   slog.Default().With("component", "kernel"),
	}
}

// WithClock overrides the clock for testing.
func (d *Dispatcher) WithClock(clock func() time.Time) *Dispatcher {
	d.clock = clock
	return d
}

// State returns a snapshot of the current system state.
func (d *Dispatcher) State() SystemState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.clone()
}

// Emit is the kernel's single entry point.
func (d *Dispatcher) Emit(in intent.Intent) Decision {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.emit(in)
}

func (d *Dispatcher) emit(in intent.Intent) Decision {
	// OPEN_CAPABILITY runs its own gate chain; unknown-id rejection comes
	// before the lock check there.
	if in.Type == intent.TypeOpenCapability {
		return d.openCapability(in)
	}

	if d.state.Locked && in.Type != intent.TypeUnlock {
		return d.deny(in, "session", "LOCKED", "session is locked; only UNLOCK is accepted")
	}

	switch in.Type {
	case intent.TypeLogin:
		return d.login(in)
	case intent.TypeUnlock:
		d.apply(Action{Type: ActionUnlock})
		d.bus.Publish(events.TypeSessionChanged, in.CorrelationID, map[string]interface{}{"locked": false})
		return d.applied(in, "")
	}

	if !d.state.Security.Authenticated {
		return d.deny(in, "session", "UNAUTHENTICATED", "no authenticated session")
	}

	switch in.Type {
	case intent.TypeCloseWindow:
		return d.windowOp(in, spaces.OpAccess, ActionCloseWindow, events.TypeWindowClosed)
	case intent.TypeFocusWindow:
		return d.windowOp(in, spaces.OpFocusWindow, ActionFocusWindow, events.TypeWindowFocused)
	case intent.TypeMinimizeWindow:
		return d.windowOp(in, spaces.OpAccess, ActionMinimizeWindow, events.TypeWindowMinimized)
	case intent.TypeRestoreWindow:
		return d.windowOp(in, spaces.OpFocusWindow, ActionRestoreWindow, events.TypeWindowRestored)
	case intent.TypeFocusNext:
		return d.focusCycle(in, +1)
	case intent.TypeFocusPrev:
		return d.focusCycle(in, -1)
	case intent.TypeFocusByIndex:
		return d.focusByIndex(in)
	case intent.TypeSwitchSpace:
		return d.switchSpace(in)
	case intent.TypeMoveWindowToSpace:
		return d.moveWindow(in)
	case intent.TypeRestoreSession:
		d.apply(Action{Type: ActionRestoreSession})
		d.bus.Publish(events.TypeSessionChanged, in.CorrelationID, map[string]interface{}{"restored": true})
		return d.applied(in, "")
	case intent.TypeStepUpRequest:
		return d.stepUpRequest(in)
	case intent.TypeStepUpComplete:
		return d.stepUpComplete(in)
	case intent.TypeStepUpCancel:
		d.apply(Action{Type: ActionClearStepUp})
		d.bus.Publish(events.TypeStepUpCancelled, in.CorrelationID, nil)
		return d.applied(in, "")
	case intent.TypeLogout:
		d.apply(Action{Type: ActionSetSecurity, Security: identity.Anonymous()})
		d.apply(Action{Type: ActionClearStepUp})
		d.bus.Publish(events.TypeSessionChanged, in.CorrelationID, map[string]interface{}{"authenticated": false})
		return d.applied(in, "")
	case intent.TypeLock:
		d.apply(Action{Type: ActionLock})
		d.bus.Publish(events.TypeSessionChanged, in.CorrelationID, map[string]interface{}{"locked": true})
		return d.applied(in, "")
	}

	return d.deny(in, "kernel", "UNKNOWN_INTENT", fmt.Sprintf("intent type %s is not recognized", in.Type))
}

func (d *Dispatcher) login(in intent.Intent) Decision {
	sec := identity.SecurityContext{
		Authenticated: true,
		UserID:        in.Payload.UserID,
		Role:          in.Payload.Role,
		Policies:      in.Payload.Policies,
	}
	d.apply(Action{Type: ActionSetSecurity, Security: sec})
	d.bus.Publish(events.TypeSessionChanged, in.CorrelationID, map[string]interface{}{
		"authenticated": true,
		"userId":        sec.UserID,
	})
	return d.applied(in, "")
}

func (d *Dispatcher) openCapability(in intent.Intent) Decision {
	m, ok := d.registry.Get(in.Payload.CapabilityID)
	if !ok {
		return d.deny(in, "capability", "UNKNOWN_CAPABILITY",
			fmt.Sprintf("capability %q is not registered", in.Payload.CapabilityID))
	}
	if d.state.Locked {
		return d.deny(in, "session", "LOCKED", "session is locked; only UNLOCK is accepted")
	}

	sec := d.state.Security
	if !sec.Authenticated {
		return d.deny(in, "session", "UNAUTHENTICATED", "no authenticated session")
	}
	if missing := sec.MissingPolicies(m.RequiredPolicies); len(missing) > 0 {
		return d.deny(in, "capability", "MISSING_POLICIES",
			fmt.Sprintf("capability %s requires policies the session lacks: %v", m.ID, missing))
	}

	if m.RequiresStepUp && !sec.StepUpValid(d.clock()) {
		pending := &PendingStepUp{
			CapabilityID:  m.ID,
			ContextID:     in.Payload.ContextID,
			CorrelationID: in.CorrelationID,
			Message:       m.StepUpMessage,
			IssuedAt:      d.clock(),
		}
		d.apply(Action{Type: ActionSetPendingStepUp, Pending: pending})
		d.bus.Publish(events.TypeStepUpRequired, in.CorrelationID, map[string]interface{}{
			"capabilityId": m.ID,
			"message":      m.StepUpMessage,
		})
		return Decision{
			Outcome:       OutcomeRequireStepUp,
			Domain:        "capability",
			FailedRule:    "STEP_UP_REQUIRED",
			Reasons:       []string{fmt.Sprintf("capability %s requires step-up: %s", m.ID, m.StepUpMessage)},
			IntentType:    in.Type,
			CorrelationID: in.CorrelationID,
		}
	}

	if sd := d.spaces.Evaluate(d.state.ActiveSpaceID, spaces.OpOpenWindow, sec); !sd.Allowed {
		return d.spaceDeny(in, sd)
	}

	windowID := ""
	switch m.WindowMode {
	case manifest.WindowModeBackgroundOnly:
		// Activation without a window.
	case manifest.WindowModeSingle:
		if w, found := d.findWindow(func(w Window) bool {
			return w.CapabilityID == m.ID && w.SpaceID == d.state.ActiveSpaceID
		}); found {
			d.apply(Action{Type: ActionFocusWindow, WindowID: w.ID})
			windowID = w.ID
			break
		}
		windowID = d.createWindow(m.ID, in.Payload.ContextID)
	case manifest.WindowModeMultiByContext:
		if w, found := d.findWindow(func(w Window) bool {
			return w.CapabilityID == m.ID && w.ContextID == in.Payload.ContextID
		}); found {
			d.apply(Action{Type: ActionFocusWindow, WindowID: w.ID})
			windowID = w.ID
			break
		}
		windowID = d.createWindow(m.ID, in.Payload.ContextID)
	default: // multi
		windowID = d.createWindow(m.ID, in.Payload.ContextID)
	}

	if in.Payload.ContextID != "" {
		d.apply(Action{Type: ActionPushContext, Context: in.Payload.ContextID})
	}

	d.bus.Publish(events.TypeCapabilityOpened, in.CorrelationID, map[string]interface{}{
		"capabilityId": m.ID,
		"windowId":     windowID,
		"spaceId":      d.state.ActiveSpaceID,
	})
	return d.applied(in, windowID)
}

func (d *Dispatcher) windowOp(in intent.Intent, op spaces.Operation, action ActionType, eventType string) Decision {
	w, ok := d.state.Windows[in.Payload.WindowID]
	if !ok {
		return d.deny(in, "window", "UNKNOWN_WINDOW",
			fmt.Sprintf("window %q does not exist", in.Payload.WindowID))
	}
	if sd := d.spaces.Evaluate(w.SpaceID, op, d.state.Security); !sd.Allowed {
		return d.spaceDeny(in, sd)
	}
	d.apply(Action{Type: action, WindowID: w.ID})
	d.bus.Publish(eventType, in.CorrelationID, map[string]interface{}{
		"windowId":     w.ID,
		"capabilityId": w.CapabilityID,
	})
	return d.applied(in, w.ID)
}

func (d *Dispatcher) focusCycle(in intent.Intent, dir int) Decision {
	order := orderedWindows(d.state)
	if len(order) == 0 {
		return d.deny(in, "window", "NO_WINDOWS", "no active windows in the active space")
	}
	cur := -1
	for i, w := range order {
		if w.ID == d.state.FocusedWindowID {
			cur = i
			break
		}
	}
	next := order[(cur+dir+len(order))%len(order)]
	return d.focusTarget(in, next.ID)
}

func (d *Dispatcher) focusByIndex(in intent.Intent) Decision {
	order := orderedWindows(d.state)
	idx := in.Payload.Index
	if idx < 0 || idx >= len(order) {
		return d.deny(in, "window", "INDEX_OUT_OF_RANGE",
			fmt.Sprintf("focus index %d outside [0,%d)", idx, len(order)))
	}
	return d.focusTarget(in, order[idx].ID)
}

func (d *Dispatcher) focusTarget(in intent.Intent, windowID string) Decision {
	if sd := d.spaces.Evaluate(d.state.ActiveSpaceID, spaces.OpFocusWindow, d.state.Security); !sd.Allowed {
		return d.spaceDeny(in, sd)
	}
	d.apply(Action{Type: ActionFocusWindow, WindowID: windowID})
	d.bus.Publish(events.TypeWindowFocused, in.CorrelationID, map[string]interface{}{"windowId": windowID})
	return d.applied(in, windowID)
}

func (d *Dispatcher) switchSpace(in intent.Intent) Decision {
	if sd := d.spaces.Evaluate(in.Payload.SpaceID, spaces.OpAccess, d.state.Security); !sd.Allowed {
		return d.spaceDeny(in, sd)
	}
	d.apply(Action{Type: ActionSwitchSpace, SpaceID: in.Payload.SpaceID})
	d.bus.Publish(events.TypeSpaceSwitched, in.CorrelationID, map[string]interface{}{"spaceId": in.Payload.SpaceID})
	return d.applied(in, "")
}

func (d *Dispatcher) moveWindow(in intent.Intent) Decision {
	w, ok := d.state.Windows[in.Payload.WindowID]
	if !ok {
		return d.deny(in, "window", "UNKNOWN_WINDOW",
			fmt.Sprintf("window %q does not exist", in.Payload.WindowID))
	}
	if sd := d.spaces.Evaluate(in.Payload.SpaceID, spaces.OpMoveWindow, d.state.Security); !sd.Allowed {
		return d.spaceDeny(in, sd)
	}
	d.apply(Action{Type: ActionMoveWindow, WindowID: w.ID, SpaceID: in.Payload.SpaceID})
	d.bus.Publish(events.TypeWindowMoved, in.CorrelationID, map[string]interface{}{
		"windowId": w.ID,
		"spaceId":  in.Payload.SpaceID,
	})
	return d.applied(in, w.ID)
}

func (d *Dispatcher) stepUpRequest(in intent.Intent) Decision {
	m, ok := d.registry.Get(in.Payload.CapabilityID)
	if !ok {
		return d.deny(in, "capability", "UNKNOWN_CAPABILITY",
			fmt.Sprintf("capability %q is not registered", in.Payload.CapabilityID))
	}
	pending := &PendingStepUp{
		CapabilityID:  m.ID,
		ContextID:     in.Payload.ContextID,
		CorrelationID: in.CorrelationID,
		Message:       m.StepUpMessage,
		IssuedAt:      d.clock(),
	}
	d.apply(Action{Type: ActionSetPendingStepUp, Pending: pending})
	d.bus.Publish(events.TypeStepUpRequired, in.CorrelationID, map[string]interface{}{
		"capabilityId": m.ID,
		"message":      m.StepUpMessage,
	})
	return Decision{
		Outcome:       OutcomeRequireStepUp,
		Domain:        "capability",
		FailedRule:    "STEP_UP_REQUIRED",
		Reasons:       []string{fmt.Sprintf("step-up challenge issued for %s", m.ID)},
		IntentType:    in.Type,
		CorrelationID: in.CorrelationID,
	}
}

func (d *Dispatcher) stepUpComplete(in intent.Intent) Decision {
	pending := d.state.PendingStepUp
	if pending == nil {
		return d.deny(in, "session", "NO_PENDING_STEP_UP", "no step-up challenge is pending")
	}
	claims, err := d.stepUp.Verify(in.Payload.StepUpToken)
	if err != nil {
		d.apply(Action{Type: ActionClearStepUp})
		return d.deny(in, "session", "STEP_UP_PROOF_INVALID", fmt.Sprintf("step-up proof rejected: %v", err))
	}
	if claims.CorrelationID != pending.CorrelationID || claims.CapabilityID != pending.CapabilityID {
		d.apply(Action{Type: ActionClearStepUp})
		return d.deny(in, "session", "STEP_UP_PROOF_MISMATCH", "step-up proof bound to a different challenge")
	}

	expiry := d.clock().Add(d.stepUp.TTL())
	if claims.ExpiresAt != nil {
		expiry = claims.ExpiresAt.Time
	}
	d.apply(Action{Type: ActionSetSecurity, Security: d.state.Security.WithStepUp(expiry)})
	d.apply(Action{Type: ActionClearStepUp})
	d.bus.Publish(events.TypeStepUpCompleted, in.CorrelationID, map[string]interface{}{
		"capabilityId": pending.CapabilityID,
	})

	// Replay the original intent under its original correlation id.
	return d.emit(intent.Intent{
		Type:          intent.TypeOpenCapability,
		CorrelationID: pending.CorrelationID,
		Payload: intent.Payload{
			CapabilityID: pending.CapabilityID,
			ContextID:    pending.ContextID,
		},
	})
}

func (d *Dispatcher) createWindow(capabilityID, contextID string) string {
	id := uuid.New().String()
	d.apply(Action{Type: ActionCreateWindow, Window: Window{
		ID:           id,
		CapabilityID: capabilityID,
		SpaceID:      d.state.ActiveSpaceID,
		ContextID:    contextID,
	}})
	return id
}

func (d *Dispatcher) findWindow(match func(Window) bool) (Window, bool) {
	best := Window{}
	found := false
	for _, w := range d.state.Windows {
		if !match(w) {
			continue
		}
		if !found || w.ID < best.ID {
			best, found = w, true
		}
	}
	return best, found
}

func (d *Dispatcher) apply(a Action) {
	d.state = Reduce(d.state, a)
}

func (d *Dispatcher) applied(in intent.Intent, windowID string) Decision {
	return Decision{
		Allowed:       true,
		Outcome:       OutcomeApplied,
		IntentType:    in.Type,
		CorrelationID: in.CorrelationID,
		WindowID:      windowID,
	}
}

func (d *Dispatcher) deny(in intent.Intent, domain, rule string, reasons ...string) Decision {
	dec := Decision{
		Outcome:       OutcomeDenied,
		Domain:        domain,
		FailedRule:    rule,
		Reasons:       reasons,
		IntentType:    in.Type,
		CorrelationID: in.CorrelationID,
	}
	d.logger.Info("intent denied", "intent", in.Type, "rule", rule, "correlationId", in.CorrelationID)
	d.bus.Publish(events.TypeDecisionExplained, in.CorrelationID, map[string]interface{}{
		"explanation": Explain(dec),
	})
	return dec
}

func (d *Dispatcher) spaceDeny(in intent.Intent, sd spaces.Decision) Decision {
	dec := Decision{
		Outcome:       OutcomeDenied,
		Domain:        "space",
		FailedRule:    "SPACE_POLICY",
		Reasons:       []string{sd.Reason},
		IntentType:    in.Type,
		CorrelationID: in.CorrelationID,
	}
	d.bus.Publish(events.TypeSpaceAccessDenied, in.CorrelationID, map[string]interface{}{
		"spaceId":   sd.SpaceID,
		"operation": string(sd.Op),
		"reason":    sd.Reason,
	})
	d.bus.Publish(events.TypeDecisionExplained, in.CorrelationID, map[string]interface{}{
		"explanation": Explain(dec),
	})
	return dec
}
