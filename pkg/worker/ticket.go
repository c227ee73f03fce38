package worker

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/canonicalize"
)

// Ticket errors.
var (
	ErrTicketExpired     = errors.New("worker: ticket expired")
	ErrBadSignature      = errors.New("worker: invalid ticket signature")
	ErrPayloadMismatch   = errors.New("worker: payload hash mismatch")
	ErrInvalidPublicKey  = errors.New("worker: invalid public key size")
	ErrMissingScopeToken = errors.New("worker: missing scope token")
)

// Ticket is a signed job authorization issued by the gateway after the
// policy chain admits an action. The worker independently re-verifies it
// before executing anything.
type Ticket struct {
	JobID            string   `json:"jobId"`
	JobType          string   `json:"jobType"`
	ActorID          string   `json:"actorId"`
	Scope            []string `json:"scope"`
	ScopeToken       string   `json:"scopeToken"`
	Verdict          string   `json:"verdict"`
	PolicyDecisionID string   `json:"policyDecisionId"`
	RequestedAt      int64    `json:"requestedAt"`
	ExpiresAt        int64    `json:"expiresAt"`
	PayloadHash      string   `json:"payloadHash"`
	ArgsHash         string   `json:"argsHash"`
	Nonce            string   `json:"nonce"`
	CorrelationID    string   `json:"correlationId"`
	Signature        string   `json:"signature"`
}

// SignableData returns the canonical JSON the signature covers. The
// signature field itself is excluded.
func (t *Ticket) SignableData() ([]byte, error) {
	scope := make([]interface{}, len(t.Scope))
	for i, s := range t.Scope {
		scope[i] = s
	}
	return canonicalize.Canonical(map[string]interface{}{
		"actorId":          t.ActorID,
		"argsHash":         t.ArgsHash,
		"correlationId":    t.CorrelationID,
		"expiresAt":        t.ExpiresAt,
		"jobId":            t.JobID,
		"jobType":          t.JobType,
		"nonce":            t.Nonce,
		"payloadHash":      t.PayloadHash,
		"policyDecisionId": t.PolicyDecisionID,
		"requestedAt":      t.RequestedAt,
		"scope":            scope,
		"scopeToken":       t.ScopeToken,
		"verdict":          t.Verdict,
	})
}

// Sign computes the Ed25519 signature over the signable data.
func (t *Ticket) Sign(priv ed25519.PrivateKey) error {
	signable, err := t.SignableData()
	if err != nil {
		return fmt.Errorf("worker: build signable data: %w", err)
	}
	sig := ed25519.Sign(priv, signable)
	t.Signature = base64.StdEncoding.EncodeToString(sig)
	return nil
}

// VerifySignature checks the Ed25519 signature against the public key.
func (t *Ticket) VerifySignature(pub []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(pub))
	}
	signable, err := t.SignableData()
	if err != nil {
		return fmt.Errorf("worker: build signable data: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(t.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), signable, sig) {
		return ErrBadSignature
	}
	return nil
}

// ValidateExpiry checks the ticket against the given instant.
func (t *Ticket) ValidateExpiry(now time.Time) error {
	if t.ExpiresAt <= now.UnixMilli() {
		return fmt.Errorf("%w: expired at %d", ErrTicketExpired, t.ExpiresAt)
	}
	return nil
}

// ValidatePayloadHash verifies the payload matches the hash the ticket
// was signed over.
func (t *Ticket) ValidatePayloadHash(payload string) error {
	computed := ComputePayloadHash(payload)
	if t.PayloadHash != computed {
		return fmt.Errorf("%w: expected %s, got %s", ErrPayloadMismatch, computed, t.PayloadHash)
	}
	return nil
}

// ComputePayloadHash computes the SHA-256 hex digest of a payload string.
func ComputePayloadHash(payload string) string {
	h := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(h[:])
}
