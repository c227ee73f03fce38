package governance

import (
	"fmt"
	"sync"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/canonicalize"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// DenialSource names which defense refused the action.
type DenialSource string

const (
	DenialFirewall DenialSource = "FIREWALL"
	DenialPolicy   DenialSource = "POLICY"
	DenialGuard    DenialSource = "GUARD"
	DenialBreaker  DenialSource = "BREAKER"
)

// DenialReceipt is the proof artifact for one refusal. Every refusal is
// receipted; nothing is dropped silently. The content hash covers all fields
// except itself so a receipt can be verified standalone.
type DenialReceipt struct {
	ReceiptID     string             `json:"receiptId"`
	DeniedAt      time.Time          `json:"deniedAt"`
	Source        DenialSource       `json:"source"`
	ToolName      string             `json:"toolName"`
	ActorRole     contracts.ActorRole `json:"actorRole"`
	RuleID        contracts.RuleID   `json:"ruleId,omitempty"`
	Details       string             `json:"details"`
	CorrelationID string             `json:"correlationId"`
	ContentHash   string             `json:"contentHash"`
}

// DenialLedger records all denial receipts for audit.
type DenialLedger struct {
	mu       sync.Mutex
	receipts []DenialReceipt
	seq      int64
	clock    func() time.Time
}

// NewDenialLedger creates an empty ledger.
func NewDenialLedger() *DenialLedger {
	return &DenialLedger{clock: time.Now}
}

// WithClock overrides the clock for testing.
func (l *DenialLedger) WithClock(clock func() time.Time) *DenialLedger {
	l.clock = clock
	return l
}

// Deny records a refusal and returns the receipt.
func (l *DenialLedger) Deny(source DenialSource, toolName string, role contracts.ActorRole, ruleID contracts.RuleID, details, correlationID string) DenialReceipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	r := DenialReceipt{
		ReceiptID:     fmt.Sprintf("denial-%d", l.seq),
		DeniedAt:      l.clock(),
		Source:        source,
		ToolName:      toolName,
		ActorRole:     role,
		RuleID:        ruleID,
		Details:       details,
		CorrelationID: correlationID,
	}
	if h, err := canonicalize.Hash(r); err == nil {
		r.ContentHash = "sha256:" + h
	}
	l.receipts = append(l.receipts, r)
	return r
}

// Receipts returns a snapshot of all recorded receipts.
func (l *DenialLedger) Receipts() []DenialReceipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]DenialReceipt, len(l.receipts))
	copy(out, l.receipts)
	return out
}

