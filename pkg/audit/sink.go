package audit

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Sink is the append-only audit chain. One mutex serializes appends so the
// sequence and hash chain never interleave; a failed append rolls its
// sequence number back so the chain has no gaps.
type Sink struct {
	mu      sync.Mutex
	chainID string
	records []Record
	seq     uint64
	head    string
	failed  int
	clock   func() time.Time
	logger  *slog.Logger
}

// NewSink creates an empty chain.
func NewSink(chainID string) *Sink {
	return &Sink{
		chainID: chainID,
		head:    GenesisHash,
		clock:   time.Now,
		logger:  slog.Default().With("component", "audit", "chain", chainID),
	}
}

// WithClock overrides the clock for testing.
func (s *Sink) WithClock(clock func() time.Time) *Sink {
	s.clock = clock
	return s
}

// Emit builds, links and appends a new record for an event. Failures are
// counted and swallowed so the event pipeline never crashes on audit
// trouble; the error return is for callers that want to know.
func (s *Sink) Emit(eventType string, payload map[string]interface{}) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	r := Record{
		ChainID:    s.chainID,
		Seq:        s.seq,
		RecordedAt: s.clock(),
		EventType:  eventType,
		Payload:    payload,
		PrevHash:   s.head,
		Version:    RecordVersion,
	}
	hash, err := ComputeRecordHash(r)
	if err != nil {
		s.seq-- // roll back, no gap
		s.failed++
		s.logger.Error("audit append failed", "eventType", eventType, "error", err)
		return Record{}, fmt.Errorf("audit: emit: %w", err)
	}
	r.RecordHash = hash
	s.records = append(s.records, r)
	s.head = hash
	return r, nil
}

// Append adds an externally built record after checking the chain
// invariants: the sequence must be exactly one past the current count and
// PrevHash must equal the previous record's hash (or the genesis sentinel).
func (s *Sink) Append(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Seq != s.seq+1 {
		s.failed++
		return fmt.Errorf("audit: sequence %d breaks continuity, expected %d", r.Seq, s.seq+1)
	}
	if r.PrevHash != s.head {
		s.failed++
		return fmt.Errorf("audit: prevHash %s does not match chain head %s", r.PrevHash, s.head)
	}
	if err := r.Verify(); err != nil {
		s.failed++
		return err
	}

	s.records = append(s.records, r)
	s.seq = r.Seq
	s.head = r.RecordHash
	return nil
}

// Records returns a snapshot of the chain.
func (s *Sink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the record count.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// FailedAppends reports how many appends were rejected or failed.
func (s *Sink) FailedAppends() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failed
}

// Rotate splits off every record with Seq <= upToSeq into an archive slice
// and keeps the remainder live. Records are moved, never mutated; the chain
// linkage inside both halves stays intact.
func (s *Sink) Rotate(upToSeq uint64) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	cut := 0
	for cut < len(s.records) && s.records[cut].Seq <= upToSeq {
		cut++
	}
	archive := make([]Record, cut)
	copy(archive, s.records[:cut])
	s.records = append([]Record(nil), s.records[cut:]...)
	return archive
}
