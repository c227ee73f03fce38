package firewall

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

func newTestFirewall() *Firewall {
	f := New()
	f.RegisterScope(Scope{
		ID:               "core.notes",
		AllowedPatterns:  []string{"read_*", "propose_*", "delete_note"},
		MaxAutoRiskLevel: contracts.RiskMedium,
	})
	return f
}

func TestNormalizesToolName(t *testing.T) {
	f := newTestFirewall()
	res := f.Check("  Read_Notes  ", nil, "core.notes", "")
	assert.True(t, res.Allowed)
	assert.Equal(t, "read_notes", res.NormalizedName)
}

func TestArgsHashIsStable(t *testing.T) {
	f := newTestFirewall()
	a := f.Check("read_notes", map[string]interface{}{"b": 2, "a": 1}, "core.notes", "")
	b := f.Check("read_notes", map[string]interface{}{"a": 1, "b": 2}, "core.notes", "")
	assert.Equal(t, a.ArgsHash, b.ArgsHash)
	assert.Len(t, a.ArgsHash, 16)
}

func TestPayloadCap(t *testing.T) {
	f := newTestFirewall()
	res := f.Check("read_notes", map[string]interface{}{
		"blob": strings.Repeat("x", MaxPayloadBytes),
	}, "core.notes", "")
	assert.False(t, res.Allowed)
	assert.Equal(t, CheckPayloadSize, res.Checks[len(res.Checks)-1].Name)
}

func TestScopeAllowlist(t *testing.T) {
	f := newTestFirewall()

	assert.True(t, f.Check("read_notes", nil, "core.notes", "").Allowed, "prefix pattern")
	assert.True(t, f.Check("delete_note", nil, "core.notes", "").Allowed, "exact pattern")

	res := f.Check("execute_script", nil, "core.notes", "")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "not allowed in scope")

	res = f.Check("read_notes", nil, "unregistered", "")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "unknown scope")
}

func TestDestructiveFlagDoesNotBlock(t *testing.T) {
	f := newTestFirewall()
	res := f.Check("delete_note", nil, "core.notes", "")
	assert.True(t, res.Allowed, "firewall flags, policy blocks")
	assert.True(t, res.Destructive)

	res = f.Check("read_notes", nil, "core.notes", "")
	assert.False(t, res.Destructive)
}

func TestCustomDestructivePatterns(t *testing.T) {
	f := New()
	f.RegisterScope(Scope{ID: "core.files", AllowedPatterns: []string{"execute_file_*"}})
	f.SetDestructivePatterns(append(DefaultDestructivePatterns, "execute_file_*"))

	res := f.Check("execute_file_move", nil, "core.files", "")
	assert.True(t, res.Allowed)
	assert.True(t, res.Destructive)
}

func TestApprovalHashMismatch(t *testing.T) {
	f := newTestFirewall()
	args := map[string]interface{}{"id": "n-1"}

	approved := f.Check("read_notes", args, "core.notes", "")
	require.True(t, approved.Allowed)

	same := f.Check("read_notes", args, "core.notes", approved.ArgsHash)
	assert.True(t, same.Allowed)

	changed := f.Check("read_notes", map[string]interface{}{"id": "n-2"}, "core.notes", approved.ArgsHash)
	assert.False(t, changed.Allowed)
	assert.Contains(t, changed.Reason, "changed after approval")
}

func TestSchemaValidation(t *testing.T) {
	f := newTestFirewall()
	require.NoError(t, f.SetSchema("propose_edit", `{
		"type": "object",
		"required": ["noteId"],
		"properties": {"noteId": {"type": "string"}}
	}`))

	res := f.Check("propose_edit", map[string]interface{}{"noteId": "n-1"}, "core.notes", "")
	assert.True(t, res.Allowed)

	res = f.Check("propose_edit", map[string]interface{}{"other": true}, "core.notes", "")
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "schema validation failed")
}

func TestOrderedCheckListForAudit(t *testing.T) {
	f := newTestFirewall()
	res := f.Check("read_notes", nil, "core.notes", "")

	var names []string
	for _, c := range res.Checks {
		names = append(names, c.Name)
		assert.True(t, c.Passed)
	}
	assert.Equal(t, []string{CheckNormalize, CheckArgsHash, CheckPayloadSize, CheckScope, CheckDestructive}, names)
}

func TestEmptyToolNameRejected(t *testing.T) {
	f := newTestFirewall()
	res := f.Check("   ", nil, "core.notes", "")
	assert.False(t, res.Allowed)
	assert.Equal(t, CheckNormalize, res.Checks[0].Name)
}
