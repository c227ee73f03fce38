package attest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegmentDigestIgnoresTrailingNewline(t *testing.T) {
	a := SegmentDigest([]byte("{\"seq\":1}\n{\"seq\":2}"))
	b := SegmentDigest([]byte("{\"seq\":1}\n{\"seq\":2}\n"))
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestAttestAndVerify(t *testing.T) {
	s, err := NewSigner()
	require.NoError(t, err)

	segment := []byte("{\"seq\":1}\n{\"seq\":2}")
	m, err := s.Attest("segment-001.jsonl", segment)
	require.NoError(t, err)
	assert.Equal(t, Algorithm, m.Algorithm)

	require.NoError(t, Verify(m, segment, s.PublicKey()))
}

func TestVerifyDetectsTamperedSegment(t *testing.T) {
	s, err := NewSigner()
	require.NoError(t, err)

	segment := []byte("{\"seq\":1}")
	m, err := s.Attest("segment-001.jsonl", segment)
	require.NoError(t, err)

	err = Verify(m, []byte("{\"seq\":1,\"tampered\":true}"), s.PublicKey())
	assert.ErrorContains(t, err, "digest")
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	s, err := NewSigner()
	require.NoError(t, err)
	other, err := NewSigner()
	require.NoError(t, err)

	segment := []byte("{\"seq\":1}")
	m, err := s.Attest("segment-001.jsonl", segment)
	require.NoError(t, err)

	err = Verify(m, segment, other.PublicKey())
	assert.ErrorContains(t, err, "signature invalid")
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	s, err := NewSigner()
	require.NoError(t, err)
	m, err := s.Attest("segment-001.jsonl", []byte("x"))
	require.NoError(t, err)

	m.Algorithm = "rsa-sha1"
	assert.ErrorContains(t, Verify(m, []byte("x"), s.PublicKey()), "unsupported algorithm")
}

func TestKeyringDerivesDeterministically(t *testing.T) {
	master := make([]byte, 32)
	copy(master, "0123456789abcdef0123456789abcdef")

	k1, err := NewMasterKeyring(master)
	require.NoError(t, err)
	k2, err := NewMasterKeyring(master)
	require.NoError(t, err)

	a, err := k1.SignerFor("segment-001")
	require.NoError(t, err)
	b, err := k2.SignerFor("segment-001")
	require.NoError(t, err)
	c, err := k1.SignerFor("segment-002")
	require.NoError(t, err)

	assert.Equal(t, a.PublicKey(), b.PublicKey(), "same segment derives the same key")
	assert.NotEqual(t, a.PublicKey(), c.PublicKey(), "different segments derive different keys")

	segment := []byte("{\"seq\":1}")
	m, err := a.Attest("segment-001", segment)
	require.NoError(t, err)
	require.NoError(t, Verify(m, segment, b.PublicKey()))
}

func TestKeyringRejectsShortSecret(t *testing.T) {
	_, err := NewMasterKeyring([]byte("short"))
	assert.Error(t, err)
}
