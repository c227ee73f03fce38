package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifest(id string) Manifest {
	return Manifest{
		ID:                id,
		Title:             "Notes",
		Icon:              "notes.svg",
		Version:           "1.2.0",
		HasUI:             true,
		WindowMode:        WindowModeSingle,
		ShowInDock:        true,
		CertificationTier: CertVerified,
	}
}

func TestValidRegistry(t *testing.T) {
	r := NewRegistry([]Manifest{validManifest("core.notes"), {
		ID:                "core.indexer",
		Title:             "Indexer",
		Icon:              "indexer.svg",
		HasUI:             false,
		WindowMode:        WindowModeBackgroundOnly,
		CertificationTier: CertBasic,
	}})
	require.True(t, r.IsValid(), "errors: %v", r.Validate().Errors)
	assert.Len(t, r.List(), 2)
	assert.Len(t, r.DockList(), 1)
}

func errorKinds(r *Registry) map[ErrorKind]bool {
	kinds := map[ErrorKind]bool{}
	for _, e := range r.Validate().Errors {
		kinds[e.Kind] = true
	}
	return kinds
}

func TestGateMissingCertTier(t *testing.T) {
	m := validManifest("core.notes")
	m.CertificationTier = ""
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrMissingCertTier])
}

func TestGateStepUpWithoutMessage(t *testing.T) {
	m := validManifest("core.payments")
	m.RequiresStepUp = true
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrMissingStepUpMessage])

	m.StepUpMessage = "Confirm payment access"
	assert.False(t, errorKinds(NewRegistry([]Manifest{m}))[ErrMissingStepUpMessage])
}

func TestGateForbiddenWindowMode(t *testing.T) {
	m := validManifest("core.notes")
	m.WindowMode = WindowModeNone
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrForbiddenWindowMode])
}

func TestGateDockWithoutUI(t *testing.T) {
	m := validManifest("core.daemon")
	m.HasUI = false
	m.WindowMode = WindowModeBackgroundOnly
	m.ShowInDock = true
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrDockWithoutUI])
}

func TestGateUIWindowModeMismatch(t *testing.T) {
	m := validManifest("core.notes")
	m.WindowMode = WindowModeBackgroundOnly
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrUIWindowModeMismatch])

	m = validManifest("core.sync")
	m.HasUI = false
	m.ShowInDock = false
	m.WindowMode = WindowModeMulti
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrUIWindowModeMismatch])
}

func TestGateTitleLength(t *testing.T) {
	m := validManifest("core.notes")
	m.Title = "N"
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrTitleLength])

	m.Title = "This capability title is far too long to pass"
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrTitleLength])
}

func TestGateMissingIcon(t *testing.T) {
	m := validManifest("core.notes")
	m.Icon = "  "
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrMissingIcon])
}

func TestGateDuplicateID(t *testing.T) {
	r := NewRegistry([]Manifest{validManifest("core.notes"), validManifest("core.notes")})
	assert.True(t, errorKinds(r)[ErrDuplicateID])
	// First registration wins; registry still serves lookups.
	_, ok := r.Get("core.notes")
	assert.True(t, ok)
}

func TestGateBlockedID(t *testing.T) {
	m := validManifest("system")
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrBlockedID])

	m = validManifest("core__notes")
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrBlockedID])
}

func TestGateInvalidVersion(t *testing.T) {
	m := validManifest("core.notes")
	m.Version = "not-a-version"
	assert.True(t, errorKinds(NewRegistry([]Manifest{m}))[ErrInvalidVersion])
}

func TestInvalidRegistryStillLoads(t *testing.T) {
	m := validManifest("core.notes")
	m.Icon = ""
	r := NewRegistry([]Manifest{m})
	assert.False(t, r.IsValid())
	_, ok := r.Get("core.notes")
	assert.True(t, ok, "failing registry must still serve lookups")
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
capabilities:
  - id: core.notes
    title: Notes
    icon: notes.svg
    hasUi: true
    windowMode: single
    showInDock: true
    certificationTier: VERIFIED
    requiredPolicies: [notes.read]
`)
	manifests, err := ParseYAML(data)
	require.NoError(t, err)
	require.Len(t, manifests, 1)
	assert.Equal(t, "core.notes", manifests[0].ID)
	assert.Equal(t, WindowModeSingle, manifests[0].WindowMode)
	assert.Equal(t, []string{"notes.read"}, manifests[0].RequiredPolicies)
}
