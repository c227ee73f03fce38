package attest

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MasterKeyring derives per-segment signing keys from one master secret with
// HKDF-SHA256, so each archived segment verifies against its own key while
// operators hold a single secret.
type MasterKeyring struct {
	master []byte
	info   []byte
}

// NewMasterKeyring wraps a master secret. The secret must be at least 32
// bytes.
func NewMasterKeyring(master []byte) (*MasterKeyring, error) {
	if len(master) < 32 {
		return nil, fmt.Errorf("attest: master secret must be at least 32 bytes, got %d", len(master))
	}
	return &MasterKeyring{master: master, info: []byte("audit-segment-attest")}, nil
}

// SignerFor derives the deterministic signer for one segment name. The same
// keyring and name always yield the same keypair.
func (k *MasterKeyring) SignerFor(segmentName string) (*Signer, error) {
	r := hkdf.New(sha256.New, k.master, []byte(segmentName), k.info)
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("attest: derive seed for %s: %w", segmentName, err)
	}
	return NewSignerFromSeed(seed)
}
