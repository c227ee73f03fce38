package kernel

import (
	"sort"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/identity"
)

// ActionType tags the reducer action union.
type ActionType string

const (
	ActionCreateWindow     ActionType = "CREATE_WINDOW"
	ActionCloseWindow      ActionType = "CLOSE_WINDOW"
	ActionFocusWindow      ActionType = "FOCUS_WINDOW"
	ActionMinimizeWindow   ActionType = "MINIMIZE_WINDOW"
	ActionRestoreWindow    ActionType = "RESTORE_WINDOW"
	ActionSwitchSpace      ActionType = "SWITCH_SPACE"
	ActionMoveWindow       ActionType = "MOVE_WINDOW"
	ActionRestoreSession   ActionType = "RESTORE_SESSION"
	ActionPushContext      ActionType = "PUSH_CONTEXT"
	ActionSetSecurity      ActionType = "SET_SECURITY"
	ActionSetPendingStepUp ActionType = "SET_PENDING_STEP_UP"
	ActionClearStepUp      ActionType = "CLEAR_PENDING_STEP_UP"
	ActionLock             ActionType = "LOCK"
	ActionUnlock           ActionType = "UNLOCK"
)

// Action is one reducer input. Only the fields its type consumes are set; ids
// are generated by the dispatcher so the reducer stays deterministic.
type Action struct {
	Type     ActionType
	Window   Window
	WindowID string
	SpaceID  string
	Context  string
	Security identity.SecurityContext
	Pending  *PendingStepUp
}

// Reduce applies one action to the state and returns the successor state.
// The input state is never mutated. Unknown window ids and unknown action
// types reduce to the unchanged (cloned) state; the dispatcher validates
// before it dispatches.
func Reduce(s SystemState, a Action) SystemState {
	next := s.clone()

	switch a.Type {
	case ActionCreateWindow:
		w := a.Window
		w.State = WindowActive
		w.ZIndex = next.NextZIndex
		next.NextZIndex++
		next.Windows[w.ID] = w
		next.FocusedWindowID = w.ID

	case ActionCloseWindow:
		w, ok := next.Windows[a.WindowID]
		if !ok {
			break
		}
		delete(next.Windows, w.ID)
		if next.FocusedWindowID == w.ID {
			next.FocusedWindowID = topWindowID(next)
		}

	case ActionFocusWindow:
		w, ok := next.Windows[a.WindowID]
		if !ok {
			break
		}
		if w.State == WindowMinimized {
			w.State = WindowActive
		}
		w.ZIndex = next.NextZIndex
		next.NextZIndex++
		next.Windows[w.ID] = w
		next.FocusedWindowID = w.ID

	case ActionMinimizeWindow:
		w, ok := next.Windows[a.WindowID]
		if !ok {
			break
		}
		w.State = WindowMinimized
		next.Windows[w.ID] = w
		if next.FocusedWindowID == w.ID {
			next.FocusedWindowID = topWindowID(next)
		}

	case ActionRestoreWindow:
		w, ok := next.Windows[a.WindowID]
		if !ok {
			break
		}
		w.State = WindowActive
		w.ZIndex = next.NextZIndex
		next.NextZIndex++
		next.Windows[w.ID] = w
		next.FocusedWindowID = w.ID

	case ActionSwitchSpace:
		next.ActiveSpaceID = a.SpaceID
		next.FocusedWindowID = topWindowID(next)

	case ActionMoveWindow:
		w, ok := next.Windows[a.WindowID]
		if !ok {
			break
		}
		w.SpaceID = a.SpaceID
		next.Windows[w.ID] = w
		if next.FocusedWindowID == w.ID && w.SpaceID != next.ActiveSpaceID {
			next.FocusedWindowID = topWindowID(next)
		}

	case ActionRestoreSession:
		for id, w := range next.Windows {
			if w.SpaceID == next.ActiveSpaceID && w.State == WindowMinimized {
				w.State = WindowActive
				next.Windows[id] = w
			}
		}
		if next.FocusedWindowID == "" {
			next.FocusedWindowID = topWindowID(next)
		}

	case ActionPushContext:
		if a.Context != "" {
			next.ContextStack = append(next.ContextStack, a.Context)
		}

	case ActionSetSecurity:
		next.Security = a.Security

	case ActionSetPendingStepUp:
		next.PendingStepUp = a.Pending

	case ActionClearStepUp:
		next.PendingStepUp = nil

	case ActionLock:
		next.Locked = true

	case ActionUnlock:
		next.Locked = false
	}

	next.CognitiveMode = DeriveCognitiveMode(next)
	return next
}

// topWindowID returns the active window with the highest z-index in the
// active space, or empty when none qualifies. Ties break on window id so the
// result is stable.
func topWindowID(s SystemState) string {
	best := ""
	bestZ := -1
	for id, w := range s.Windows {
		if w.SpaceID != s.ActiveSpaceID || w.State != WindowActive {
			continue
		}
		if w.ZIndex > bestZ || (w.ZIndex == bestZ && id < best) {
			best, bestZ = id, w.ZIndex
		}
	}
	return best
}

// orderedWindows returns the active-space active windows sorted by z-index
// then id. Shared by the focus-cycling intents.
func orderedWindows(s SystemState) []Window {
	var out []Window
	for _, w := range s.Windows {
		if w.SpaceID == s.ActiveSpaceID && w.State == WindowActive {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZIndex != out[j].ZIndex {
			return out[i].ZIndex < out[j].ZIndex
		}
		return out[i].ID < out[j].ID
	})
	return out
}
