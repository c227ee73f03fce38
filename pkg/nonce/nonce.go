// Package nonce provides the anti-replay pools. The gateway and the worker
// each own a separate pool instance with its own lock; merging them would
// collapse the two replay checks into one and defeat the second line of
// defense, so nothing in this package shares state between instances.
package nonce

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultTTL is how long a used nonce stays poisoned.
const DefaultTTL = 10 * time.Minute

// Pool records used nonces. Use returns false when the nonce was already
// seen inside the TTL; a true return marks it used atomically.
type Pool interface {
	Use(ctx context.Context, nonce string) (bool, error)
	Seen(ctx context.Context, nonce string) (bool, error)
}

// MemoryPool is the in-process pool. Expired entries are pruned lazily on
// access; no background scheduler is required.
type MemoryPool struct {
	mu    sync.Mutex
	ttl   time.Duration
	seen  map[string]time.Time
	clock func() time.Time
}

// NewMemoryPool creates a pool. A zero ttl falls back to DefaultTTL.
func NewMemoryPool(ttl time.Duration) *MemoryPool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryPool{ttl: ttl, seen: make(map[string]time.Time), clock: time.Now}
}

// WithClock overrides the clock for testing.
func (p *MemoryPool) WithClock(clock func() time.Time) *MemoryPool {
	p.clock = clock
	return p
}

func (p *MemoryPool) prune(now time.Time) {
	for n, at := range p.seen {
		if now.Sub(at) >= p.ttl {
			delete(p.seen, n)
		}
	}
}

// Use marks a nonce used. Returns false if it was already used within the TTL.
func (p *MemoryPool) Use(_ context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, fmt.Errorf("nonce: empty nonce")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock()
	p.prune(now)
	if _, dup := p.seen[nonce]; dup {
		return false, nil
	}
	p.seen[nonce] = now
	return true, nil
}

// Seen reports whether a nonce is currently poisoned, without consuming it.
func (p *MemoryPool) Seen(_ context.Context, nonce string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune(p.clock())
	_, ok := p.seen[nonce]
	return ok, nil
}

// Len reports the live entry count after pruning. For tests and metrics.
func (p *MemoryPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune(p.clock())
	return len(p.seen)
}
