// Package attest signs audit export segments. The algorithm pair is fixed
// at Ed25519 over a SHA-256 digest so any independent verifier can reproduce
// the check; nothing here is configurable.
package attest

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// Algorithm is the fixed attestation algorithm identifier.
const Algorithm = "ed25519-sha256"

// SegmentDigest computes the SHA-256 hex digest of a JSONL segment. A
// trailing newline is stripped first so the digest is identical whether or
// not the writer terminated the last line.
func SegmentDigest(segment []byte) string {
	segment = bytes.TrimRight(segment, "\n")
	sum := sha256.Sum256(segment)
	return hex.EncodeToString(sum[:])
}

// Manifest is the attestation artifact published next to a segment.
type Manifest struct {
	SegmentName string    `json:"segmentName"`
	Digest      string    `json:"digest"`
	Signature   string    `json:"signature"`
	PublicKey   string    `json:"publicKey"`
	SignedAt    time.Time `json:"signedAt"`
	Algorithm   string    `json:"algorithm"`
}

// Signer signs segment digests with an Ed25519 private key.
type Signer struct {
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	clock func() time.Time
}

// NewSigner generates a fresh keypair.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("attest: key generation: %w", err)
	}
	return &Signer{priv: priv, pub: pub, clock: time.Now}, nil
}

// NewSignerFromSeed builds a signer from a 32-byte seed.
func NewSignerFromSeed(seed []byte) (*Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("attest: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey), clock: time.Now}, nil
}

// WithClock overrides the clock for testing.
func (s *Signer) WithClock(clock func() time.Time) *Signer {
	s.clock = clock
	return s
}

// PublicKey returns the raw public key bytes.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

// Attest digests a segment and signs the raw digest bytes, returning the
// manifest. The signature and public key are base64.
func (s *Signer) Attest(segmentName string, segment []byte) (Manifest, error) {
	digestHex := SegmentDigest(segment)
	digest, err := hex.DecodeString(digestHex)
	if err != nil {
		return Manifest{}, fmt.Errorf("attest: digest decode: %w", err)
	}
	sig := ed25519.Sign(s.priv, digest)
	return Manifest{
		SegmentName: segmentName,
		Digest:      digestHex,
		Signature:   base64.StdEncoding.EncodeToString(sig),
		PublicKey:   base64.StdEncoding.EncodeToString(s.pub),
		SignedAt:    s.clock(),
		Algorithm:   Algorithm,
	}, nil
}

// Verify checks a manifest against the segment bytes and a raw public key.
func Verify(m Manifest, segment []byte, pub ed25519.PublicKey) error {
	if m.Algorithm != Algorithm {
		return fmt.Errorf("attest: unsupported algorithm %q", m.Algorithm)
	}
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("attest: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	digestHex := SegmentDigest(segment)
	if digestHex != m.Digest {
		return fmt.Errorf("attest: segment digest %s does not match manifest digest %s", digestHex, m.Digest)
	}
	digest, err := hex.DecodeString(m.Digest)
	if err != nil {
		return fmt.Errorf("attest: digest decode: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(m.Signature)
	if err != nil {
		return fmt.Errorf("attest: signature decode: %w", err)
	}
	if !ed25519.Verify(pub, digest, sig) {
		return fmt.Errorf("attest: signature invalid for segment %s", m.SegmentName)
	}
	return nil
}
