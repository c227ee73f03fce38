package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSortsKeysRecursively(t *testing.T) {
	v := map[string]interface{}{
		"b": 2,
		"a": map[string]interface{}{"z": 1, "y": []interface{}{"k", "j"}},
	}
	out, err := Canonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":["k","j"],"z":1},"b":2}`, string(out))
}

func TestCanonicalKeepsNull(t *testing.T) {
	out, err := Canonical(map[string]interface{}{"a": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"a":null}`, string(out))
}

func TestHashKeyOrderIndependent(t *testing.T) {
	h1, err := Hash(map[string]interface{}{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := Hash(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestHashSensitiveToValues(t *testing.T) {
	h1, err := Hash(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	h2, err := Hash(map[string]interface{}{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestArgsHashLength(t *testing.T) {
	h, err := ArgsHash(map[string]interface{}{"path": "/tmp/x", "mode": 0644})
	require.NoError(t, err)
	assert.Len(t, h, ArgsHashLength)
}

func TestArgsHashNilArgs(t *testing.T) {
	h1, err := ArgsHash(nil)
	require.NoError(t, err)
	h2, err := ArgsHash(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
