package audit

import "fmt"

// ValidationResult reports the first chain violation found, if any.
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	FailedSeq  uint64 `json:"failedSeq,omitempty"`
	Reason     string `json:"reason,omitempty"`
	CheckedLen int    `json:"checkedLen"`
}

// ValidateChain walks records in order checking sequence continuity,
// prev-hash linkage and recomputed record hashes. It stops at the first
// violation and reports its sequence number.
func ValidateChain(records []Record) ValidationResult {
	prevHash := GenesisHash
	var prevSeq uint64

	for i, r := range records {
		if i == 0 {
			prevSeq = r.Seq - 1
		}
		if r.Seq != prevSeq+1 {
			return ValidationResult{
				FailedSeq:  r.Seq,
				Reason:     fmt.Sprintf("sequence gap: expected %d, got %d", prevSeq+1, r.Seq),
				CheckedLen: i,
			}
		}
		if i == 0 && r.Seq == 1 && r.PrevHash != GenesisHash {
			return ValidationResult{
				FailedSeq:  r.Seq,
				Reason:     fmt.Sprintf("first record prevHash must be %s", GenesisHash),
				CheckedLen: i,
			}
		}
		if i > 0 && r.PrevHash != prevHash {
			return ValidationResult{
				FailedSeq:  r.Seq,
				Reason:     fmt.Sprintf("prevHash %s does not link to predecessor hash %s", r.PrevHash, prevHash),
				CheckedLen: i,
			}
		}
		want, err := ComputeRecordHash(r)
		if err != nil {
			return ValidationResult{
				FailedSeq:  r.Seq,
				Reason:     fmt.Sprintf("record not hashable: %v", err),
				CheckedLen: i,
			}
		}
		if want != r.RecordHash {
			return ValidationResult{
				FailedSeq:  r.Seq,
				Reason:     fmt.Sprintf("recordHash mismatch: stored %s, computed %s", r.RecordHash, want),
				CheckedLen: i,
			}
		}
		prevHash = r.RecordHash
		prevSeq = r.Seq
	}
	return ValidationResult{Valid: true, CheckedLen: len(records)}
}
