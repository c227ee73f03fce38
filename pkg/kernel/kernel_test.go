package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/events"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/identity"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/intent"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/manifest"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/spaces"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	d      *Dispatcher
	bus    *events.Bus
	issuer *identity.StepUpIssuer
}

func newFixture(t *testing.T, manifests []manifest.Manifest, policies ...spaces.SpacePolicy) *fixture {
	t.Helper()
	reg := manifest.NewRegistry(manifests)
	ev, err := spaces.NewEvaluator()
	require.NoError(t, err)
	for _, p := range policies {
		require.NoError(t, ev.Register(p))
	}
	bus := events.NewBus()
	issuer := identity.NewStepUpIssuer([]byte("test-secret"), 0)
	issuer.WithClock(func() time.Time { return testNow })
	d := NewDispatcher(reg, ev, bus, issuer, "main").WithClock(func() time.Time { return testNow })
	return &fixture{d: d, bus: bus, issuer: issuer}
}

func testManifests() []manifest.Manifest {
	return []manifest.Manifest{
		{
			ID: "notes", Title: "Notes", Icon: "notes.svg", HasUI: true,
			WindowMode: manifest.WindowModeSingle, CertificationTier: manifest.CertBasic,
		},
		{
			ID: "terminal", Title: "Terminal", Icon: "term.svg", HasUI: true,
			WindowMode: manifest.WindowModeMulti, CertificationTier: manifest.CertBasic,
		},
		{
			ID: "chat", Title: "Chat", Icon: "chat.svg", HasUI: true,
			WindowMode: manifest.WindowModeMultiByContext, CertificationTier: manifest.CertBasic,
		},
		{
			ID: "indexer", Title: "Indexer", Icon: "idx.svg", HasUI: false,
			WindowMode: manifest.WindowModeBackgroundOnly, CertificationTier: manifest.CertBasic,
		},
		{
			ID: "payments", Title: "Payments", Icon: "pay.svg", HasUI: true,
			WindowMode: manifest.WindowModeSingle, CertificationTier: manifest.CertVerified,
			RequiresStepUp: true, StepUpMessage: "Confirm access to payments",
		},
		{
			ID: "secrets", Title: "Secrets", Icon: "sec.svg", HasUI: true,
			WindowMode: manifest.WindowModeSingle, CertificationTier: manifest.CertVerified,
			RequiredPolicies: []string{"secrets.read"},
		},
	}
}

func login(f *fixture, role contracts.ActorRole, policies ...string) {
	f.d.Emit(intent.Login("u-1", role, policies))
}

func eventTypes(f *fixture) []string {
	var out []string
	for _, ev := range f.bus.Events() {
		out = append(out, ev.Type)
	}
	return out
}

func TestUnknownCapabilityDenied(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)
	dec := f.d.Emit(intent.OpenCapability("ghost", ""))
	assert.Equal(t, OutcomeDenied, dec.Outcome)
	assert.Equal(t, "UNKNOWN_CAPABILITY", dec.FailedRule)
	assert.Contains(t, eventTypes(f), events.TypeDecisionExplained)
}

func TestUnauthenticatedDenied(t *testing.T) {
	f := newFixture(t, testManifests())
	dec := f.d.Emit(intent.OpenCapability("notes", ""))
	assert.Equal(t, OutcomeDenied, dec.Outcome)
	assert.Equal(t, "UNAUTHENTICATED", dec.FailedRule)
	assert.Empty(t, f.d.State().Windows)
}

func TestMissingPoliciesDenied(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)
	dec := f.d.Emit(intent.OpenCapability("secrets", ""))
	assert.Equal(t, "MISSING_POLICIES", dec.FailedRule)

	login(f, contracts.RoleUser, "secrets.read")
	dec = f.d.Emit(intent.OpenCapability("secrets", ""))
	assert.True(t, dec.Allowed)
}

func TestSingleModeReusesWindow(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)

	first := f.d.Emit(intent.OpenCapability("notes", ""))
	require.True(t, first.Allowed)
	second := f.d.Emit(intent.OpenCapability("notes", ""))
	require.True(t, second.Allowed)

	assert.Equal(t, first.WindowID, second.WindowID)
	assert.Len(t, f.d.State().Windows, 1)
}

func TestMultiModeAlwaysCreates(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)

	a := f.d.Emit(intent.OpenCapability("terminal", ""))
	b := f.d.Emit(intent.OpenCapability("terminal", ""))
	assert.NotEqual(t, a.WindowID, b.WindowID)
	assert.Len(t, f.d.State().Windows, 2)
}

func TestMultiByContextMode(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)

	a := f.d.Emit(intent.OpenCapability("chat", "thread-1"))
	b := f.d.Emit(intent.OpenCapability("chat", "thread-2"))
	c := f.d.Emit(intent.OpenCapability("chat", "thread-1"))

	assert.NotEqual(t, a.WindowID, b.WindowID)
	assert.Equal(t, a.WindowID, c.WindowID)
	assert.Len(t, f.d.State().Windows, 2)
	assert.Equal(t, a.WindowID, f.d.State().FocusedWindowID)
}

func TestBackgroundOnlyOpensNoWindow(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)
	dec := f.d.Emit(intent.OpenCapability("indexer", ""))
	assert.True(t, dec.Allowed)
	assert.Empty(t, dec.WindowID)
	assert.Empty(t, f.d.State().Windows)
	assert.Contains(t, eventTypes(f), events.TypeCapabilityOpened)
}

func TestSpaceDenyLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, testManifests(), spaces.SpacePolicy{
		SpaceID:     "main",
		Permissions: spaces.Permissions{CanAccess: true}, // openWindow disabled
	})
	login(f, contracts.RoleUser)

	before := f.d.State()
	dec := f.d.Emit(intent.OpenCapability("notes", ""))

	assert.Equal(t, OutcomeDenied, dec.Outcome)
	assert.Equal(t, "SPACE_POLICY", dec.FailedRule)
	assert.Equal(t, before.Windows, f.d.State().Windows)
	assert.Contains(t, eventTypes(f), events.TypeSpaceAccessDenied)
	assert.Contains(t, eventTypes(f), events.TypeDecisionExplained)
}

func TestStepUpChallengeAndReplay(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)

	open := intent.OpenCapability("payments", "")
	dec := f.d.Emit(open)
	require.Equal(t, OutcomeRequireStepUp, dec.Outcome)
	require.NotNil(t, f.d.State().PendingStepUp)
	assert.Empty(t, f.d.State().Windows, "challenge must not mutate capability state")

	token, _, err := f.issuer.Issue("u-1", "payments", open.CorrelationID)
	require.NoError(t, err)

	replay := f.d.Emit(intent.StepUpComplete(token))
	require.True(t, replay.Allowed)
	assert.Equal(t, open.CorrelationID, replay.CorrelationID, "replay keeps the original correlation id")
	assert.Nil(t, f.d.State().PendingStepUp)
	assert.Len(t, f.d.State().Windows, 1)
	assert.True(t, f.d.State().Security.StepUpValid(testNow))
}

func TestStepUpProofBoundToChallenge(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)

	open := intent.OpenCapability("payments", "")
	f.d.Emit(open)

	token, _, err := f.issuer.Issue("u-1", "payments", "some-other-correlation")
	require.NoError(t, err)

	dec := f.d.Emit(intent.StepUpComplete(token))
	assert.Equal(t, "STEP_UP_PROOF_MISMATCH", dec.FailedRule)
	assert.Nil(t, f.d.State().PendingStepUp)
	assert.Empty(t, f.d.State().Windows)
}

func TestStepUpCancelClearsPending(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)
	f.d.Emit(intent.OpenCapability("payments", ""))
	require.NotNil(t, f.d.State().PendingStepUp)

	dec := f.d.Emit(intent.New(intent.TypeStepUpCancel, intent.Payload{}))
	assert.True(t, dec.Allowed)
	assert.Nil(t, f.d.State().PendingStepUp)
}

func TestLockDeniesEverythingExceptUnlock(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)
	f.d.Emit(intent.New(intent.TypeLock, intent.Payload{}))
	assert.Equal(t, ModeLocked, f.d.State().CognitiveMode)

	dec := f.d.Emit(intent.OpenCapability("notes", ""))
	assert.Equal(t, "LOCKED", dec.FailedRule)

	dec = f.d.Emit(intent.New(intent.TypeUnlock, intent.Payload{}))
	assert.True(t, dec.Allowed)
	assert.Equal(t, ModeCalm, f.d.State().CognitiveMode)
}

func TestFocusCycling(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)

	a := f.d.Emit(intent.OpenCapability("terminal", ""))
	b := f.d.Emit(intent.OpenCapability("terminal", ""))
	require.Equal(t, b.WindowID, f.d.State().FocusedWindowID)

	next := f.d.Emit(intent.New(intent.TypeFocusNext, intent.Payload{}))
	assert.Equal(t, a.WindowID, next.WindowID)

	prev := f.d.Emit(intent.New(intent.TypeFocusPrev, intent.Payload{}))
	assert.Equal(t, b.WindowID, prev.WindowID)
}

func TestFocusByIndex(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)
	f.d.Emit(intent.OpenCapability("terminal", ""))
	f.d.Emit(intent.OpenCapability("terminal", ""))

	dec := f.d.Emit(intent.New(intent.TypeFocusByIndex, intent.Payload{Index: 5}))
	assert.Equal(t, "INDEX_OUT_OF_RANGE", dec.FailedRule)

	dec = f.d.Emit(intent.New(intent.TypeFocusByIndex, intent.Payload{Index: 0}))
	assert.True(t, dec.Allowed)
	assert.Equal(t, dec.WindowID, f.d.State().FocusedWindowID)
}

func TestMinimizeRestoreAndSession(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)

	a := f.d.Emit(intent.OpenCapability("terminal", ""))
	b := f.d.Emit(intent.OpenCapability("terminal", ""))

	f.d.Emit(intent.MinimizeWindow(a.WindowID))
	f.d.Emit(intent.MinimizeWindow(b.WindowID))
	assert.Equal(t, ModeCalm, f.d.State().CognitiveMode)

	f.d.Emit(intent.New(intent.TypeRestoreSession, intent.Payload{}))
	st := f.d.State()
	assert.Equal(t, WindowActive, st.Windows[a.WindowID].State)
	assert.Equal(t, WindowActive, st.Windows[b.WindowID].State)
}

func TestMoveWindowToSpace(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)
	a := f.d.Emit(intent.OpenCapability("notes", ""))

	dec := f.d.Emit(intent.MoveWindowToSpace(a.WindowID, "second"))
	require.True(t, dec.Allowed)
	st := f.d.State()
	assert.Equal(t, "second", st.Windows[a.WindowID].SpaceID)
	assert.Empty(t, st.FocusedWindowID, "moved-away window loses focus")
	assert.Equal(t, ModeCalm, st.CognitiveMode)
}

func TestSwitchSpaceGoverned(t *testing.T) {
	f := newFixture(t, testManifests(), spaces.SpacePolicy{
		SpaceID:      "restricted",
		Permissions:  spaces.Permissions{CanAccess: true},
		RequiredRole: contracts.RoleOwner,
	})
	login(f, contracts.RoleUser)

	dec := f.d.Emit(intent.SwitchSpace("restricted"))
	assert.Equal(t, "SPACE_POLICY", dec.FailedRule)
	assert.Equal(t, "main", f.d.State().ActiveSpaceID)

	dec = f.d.Emit(intent.SwitchSpace("open-space"))
	assert.True(t, dec.Allowed)
	assert.Equal(t, "open-space", f.d.State().ActiveSpaceID)
}

func TestCognitiveModeDerivation(t *testing.T) {
	s := NewState("main")
	assert.Equal(t, ModeCalm, DeriveCognitiveMode(s))

	s.Windows["w1"] = Window{ID: "w1", State: WindowActive, SpaceID: "main", ZIndex: 1}
	s.FocusedWindowID = "w1"
	assert.Equal(t, ModeFocused, DeriveCognitiveMode(s))

	s.Windows["w2"] = Window{ID: "w2", State: WindowActive, SpaceID: "main", ZIndex: 2}
	assert.Equal(t, ModeMultitask, DeriveCognitiveMode(s))

	// Minimized windows never count toward multitask.
	s.Windows["w2"] = Window{ID: "w2", State: WindowMinimized, SpaceID: "main", ZIndex: 2}
	assert.Equal(t, ModeFocused, DeriveCognitiveMode(s))

	s.FocusedWindowID = "ghost"
	assert.Equal(t, ModeCalm, DeriveCognitiveMode(s))
}

func TestReducerDoesNotMutateInput(t *testing.T) {
	s := NewState("main")
	s.Windows["w1"] = Window{ID: "w1", State: WindowActive, SpaceID: "main", ZIndex: 1}

	_ = Reduce(s, Action{Type: ActionCloseWindow, WindowID: "w1"})
	assert.Contains(t, s.Windows, "w1", "reducer must not alias the input state")
}

func TestExplainIsDeterministic(t *testing.T) {
	dec := Decision{
		Outcome:       OutcomeDenied,
		Domain:        "space",
		FailedRule:    "SPACE_POLICY",
		Reasons:       []string{"role user below required owner"},
		IntentType:    intent.TypeSwitchSpace,
		CorrelationID: "c-1",
	}
	first := Explain(dec)
	second := Explain(dec)
	assert.Equal(t, first, second)
	assert.Equal(t, "intent SWITCH_SPACE resolved as denied", first[0])
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t, testManifests())
	login(f, contracts.RoleUser)
	f.d.Emit(intent.OpenCapability("payments", ""))

	f.d.Emit(intent.New(intent.TypeLogout, intent.Payload{}))
	st := f.d.State()
	assert.False(t, st.Security.Authenticated)
	assert.Nil(t, st.PendingStepUp)
}
