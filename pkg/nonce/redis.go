package nonce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPool backs a nonce pool with Redis so replay protection survives
// process restarts. SET NX gives the atomic use-once semantics; the key TTL
// replaces lazy pruning.
type RedisPool struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
}

// NewRedisPool creates a Redis-backed pool. The prefix keeps gateway and
// worker pools disjoint even on a shared Redis instance.
func NewRedisPool(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisPool {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisPool{client: client, ttl: ttl, keyPrefix: keyPrefix}
}

func (p *RedisPool) key(nonce string) string {
	return fmt.Sprintf("%s:nonce:%s", p.keyPrefix, nonce)
}

// Use marks a nonce used. Returns false if it was already used within the TTL.
func (p *RedisPool) Use(ctx context.Context, nonce string) (bool, error) {
	if nonce == "" {
		return false, fmt.Errorf("nonce: empty nonce")
	}
	ok, err := p.client.SetNX(ctx, p.key(nonce), 1, p.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("nonce: redis setnx: %w", err)
	}
	return ok, nil
}

// Seen reports whether a nonce is currently poisoned.
func (p *RedisPool) Seen(ctx context.Context, nonce string) (bool, error) {
	n, err := p.client.Exists(ctx, p.key(nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("nonce: redis exists: %w", err)
	}
	return n > 0, nil
}
