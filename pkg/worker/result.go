package worker

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/canonicalize"
)

// Result statuses.
const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Metrics carries execution performance data.
type Metrics struct {
	Attempts  int   `json:"attempts"`
	LatencyMs int64 `json:"latencyMs"`
}

// Result is the signed execution report the worker posts back.
type Result struct {
	JobID         string      `json:"jobId"`
	Status        string      `json:"status"`
	StartedAt     int64       `json:"startedAt"`
	FinishedAt    int64       `json:"finishedAt"`
	ResultHash    string      `json:"resultHash"`
	ResultData    interface{} `json:"resultData,omitempty"`
	ErrorCode     string      `json:"errorCode,omitempty"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	Metrics       Metrics     `json:"metrics"`
	CorrelationID string      `json:"correlationId"`
	WorkerID      string      `json:"workerId"`
	Signature     string      `json:"signature"`
}

// signableData is the canonical JSON the HMAC covers. Error details and
// result data are excluded; they are attested via resultHash.
func (r *Result) signableData() ([]byte, error) {
	return canonicalize.Canonical(map[string]interface{}{
		"correlationId": r.CorrelationID,
		"finishedAt":    r.FinishedAt,
		"jobId":         r.JobID,
		"metrics": map[string]interface{}{
			"attempts":  r.Metrics.Attempts,
			"latencyMs": r.Metrics.LatencyMs,
		},
		"resultHash": r.ResultHash,
		"startedAt":  r.StartedAt,
		"status":     r.Status,
		"workerId":   r.WorkerID,
	})
}

// Sign computes the HMAC-SHA256 signature over the signable data.
func (r *Result) Sign(secret string) error {
	signable, err := r.signableData()
	if err != nil {
		return fmt.Errorf("worker: build signable data: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signable)
	r.Signature = hex.EncodeToString(mac.Sum(nil))
	return nil
}

// VerifySignature recomputes the HMAC and compares in constant time.
func (r *Result) VerifySignature(secret string) (bool, error) {
	signable, err := r.signableData()
	if err != nil {
		return false, fmt.Errorf("worker: build signable data: %w", err)
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signable)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(r.Signature)), nil
}

// ComputeResultHash hashes arbitrary result data with canonical JSON.
func ComputeResultHash(data interface{}) (string, error) {
	canonical, err := canonicalize.Canonical(data)
	if err != nil {
		return "", fmt.Errorf("worker: marshal result data: %w", err)
	}
	h := sha256.Sum256(canonical)
	return hex.EncodeToString(h[:]), nil
}
