// Package audit implements the tamper-evident decision log: hash-chained
// records, append-only sinks, chain validation, rotation, redaction and
// JSONL export. Record hashing runs over canonical JSON so independent
// implementations produce byte-identical chains.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/canonicalize"
)

// GenesisHash is the prev-hash sentinel of the first record in a chain.
const GenesisHash = "GENESIS"

// RecordVersion is the current record schema version.
const RecordVersion = 1

// Record is one hash-chained audit entry. RecordHash covers the canonical
// JSON of the record with the RecordHash field itself removed.
type Record struct {
	ChainID    string                 `json:"chainId"`
	Seq        uint64                 `json:"seq"`
	RecordedAt time.Time              `json:"recordedAt"`
	EventType  string                 `json:"eventType"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	PrevHash   string                 `json:"prevHash"`
	RecordHash string                 `json:"recordHash"`
	Version    int                    `json:"version"`
}

// ComputeRecordHash hashes the record excluding its own RecordHash field.
func ComputeRecordHash(r Record) (string, error) {
	r.RecordHash = ""
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("audit: marshal record: %w", err)
	}
	var stripped map[string]interface{}
	if err := json.Unmarshal(data, &stripped); err != nil {
		return "", fmt.Errorf("audit: reshape record: %w", err)
	}
	delete(stripped, "recordHash")
	return canonicalize.Hash(stripped)
}

// Verify recomputes the record hash and compares.
func (r Record) Verify() error {
	want, err := ComputeRecordHash(r)
	if err != nil {
		return err
	}
	if want != r.RecordHash {
		return fmt.Errorf("audit: record %d hash mismatch: stored %s, computed %s", r.Seq, r.RecordHash, want)
	}
	return nil
}
