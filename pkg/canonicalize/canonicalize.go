// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization and the SHA-256 digests derived from it.
//
// Canonical form is what makes hashing key-order independent: the same
// logical object always produces byte-identical output, so independent
// implementations (gateway, worker, offline verifier) agree on every hash.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ArgsHashLength is the number of hex characters kept from the full SHA-256
// digest when fingerprinting tool arguments.
const ArgsHashLength = 16

// Canonical returns the RFC 8785 canonical JSON encoding of v.
//
// Object keys are sorted recursively, array order is preserved, nil is
// encoded as JSON null, and fields omitted by struct tags simply do not
// appear. No incidental whitespace is emitted.
func Canonical(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}
	out, err := jcs.Transform(intermediate)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return out, nil
}

// Hash returns the SHA-256 hex digest of the canonical JSON encoding of v.
func Hash(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the SHA-256 hex digest of raw bytes.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ArgsHash fingerprints tool-call arguments: the first ArgsHashLength hex
// characters of the canonical SHA-256 digest. Short enough to log everywhere,
// long enough to bind an approval to exact arguments.
func ArgsHash(args map[string]interface{}) (string, error) {
	if args == nil {
		args = map[string]interface{}{}
	}
	full, err := Hash(args)
	if err != nil {
		return "", err
	}
	return full[:ArgsHashLength], nil
}
