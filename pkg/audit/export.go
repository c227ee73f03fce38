package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/canonicalize"
)

// ExportToJSONL serializes records as one canonical-JSON line each, joined
// with LF and without a trailing newline. The exact byte shape matters: the
// attestation digest runs over these bytes.
func ExportToJSONL(records []Record) ([]byte, error) {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("audit: export record %d: %w", r.Seq, err)
		}
		var generic map[string]interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("audit: export record %d: %w", r.Seq, err)
		}
		canonical, err := canonicalize.Canonical(generic)
		if err != nil {
			return nil, fmt.Errorf("audit: export record %d: %w", r.Seq, err)
		}
		lines = append(lines, string(canonical))
	}
	return []byte(strings.Join(lines, "\n")), nil
}

// ParseJSONL decodes a JSONL export back into records.
func ParseJSONL(data []byte) ([]Record, error) {
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	var out []Record
	for i, line := range strings.Split(text, "\n") {
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("audit: parse line %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ValidateJSONLExport re-parses an export and validates the chain it holds.
func ValidateJSONLExport(data []byte) (ValidationResult, error) {
	records, err := ParseJSONL(data)
	if err != nil {
		return ValidationResult{}, err
	}
	return ValidateChain(records), nil
}

// ExportSummary describes one export for operators.
type ExportSummary struct {
	ChainID        string         `json:"chainId"`
	RecordCount    int            `json:"recordCount"`
	FirstSeq       uint64         `json:"firstSeq,omitempty"`
	LastSeq        uint64         `json:"lastSeq,omitempty"`
	FirstAt        time.Time      `json:"firstAt,omitempty"`
	LastAt         time.Time      `json:"lastAt,omitempty"`
	HeadHash       string         `json:"headHash,omitempty"`
	ChainValid     bool           `json:"chainValid"`
	DecisionCounts map[string]int `json:"decisionCounts,omitempty"`
}

// GenerateExportSummary summarizes a record set, including whether the
// chain it holds still validates.
func GenerateExportSummary(records []Record) ExportSummary {
	sum := ExportSummary{RecordCount: len(records)}
	if len(records) == 0 {
		sum.ChainValid = true
		return sum
	}
	first, last := records[0], records[len(records)-1]
	sum.ChainID = first.ChainID
	sum.FirstSeq = first.Seq
	sum.LastSeq = last.Seq
	sum.FirstAt = first.RecordedAt
	sum.LastAt = last.RecordedAt
	sum.HeadHash = last.RecordHash
	sum.ChainValid = ValidateChain(records).Valid
	sum.DecisionCounts = make(map[string]int)
	for _, r := range records {
		sum.DecisionCounts[r.EventType]++
	}
	return sum
}
