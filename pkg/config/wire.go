package config

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/identity"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/nonce"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/observability"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/store"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/worker"
)

// NoncePool builds a nonce pool from the configured backend. An empty
// REDIS_ADDR selects the in-memory pool. Each call returns a fresh instance;
// the gateway and worker pools must stay distinct, so call this once per
// side with different key prefixes.
func (c *Config) NoncePool(keyPrefix string) nonce.Pool {
	if c.RedisAddr == "" {
		return nonce.NewMemoryPool(nonce.DefaultTTL)
	}
	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	return nonce.NewRedisPool(client, keyPrefix, nonce.DefaultTTL)
}

// ArchiveStore opens the configured audit archive backend. An empty
// ARCHIVE_DSN returns nil (no archival); a postgres DSN opens Postgres,
// anything else is treated as a SQLite file path.
func (c *Config) ArchiveStore() (*store.SQLArchive, error) {
	switch {
	case c.ArchiveDSN == "":
		return nil, nil
	case strings.HasPrefix(c.ArchiveDSN, "postgres://"), strings.HasPrefix(c.ArchiveDSN, "postgresql://"):
		return store.OpenPostgres(c.ArchiveDSN)
	default:
		return store.OpenSQLite(c.ArchiveDSN)
	}
}

// Observability maps the env settings onto the telemetry provider config.
func (c *Config) Observability() *observability.Config {
	cfg := observability.DefaultConfig()
	cfg.Environment = string(c.Environment)
	cfg.OTLPEndpoint = c.OTLPEndpoint
	cfg.Enabled = c.OTelEnabled
	cfg.Insecure = c.Environment == "development"
	return cfg
}

// StepUpIssuer builds the step-up proof issuer. The secret must be set.
func (c *Config) StepUpIssuer() (*identity.StepUpIssuer, error) {
	if c.StepUpSecret == "" {
		return nil, fmt.Errorf("config: STEP_UP_SECRET is required")
	}
	return identity.NewStepUpIssuer([]byte(c.StepUpSecret), 0), nil
}

// WorkerConfig assembles the polling worker's settings, decoding the
// base64 ticket verification key.
func (c *Config) WorkerConfig() (worker.Config, error) {
	if c.WorkerHMACSecret == "" {
		return worker.Config{}, fmt.Errorf("config: JOB_WORKER_HMAC_SECRET is required")
	}
	pub, err := base64.StdEncoding.DecodeString(c.TicketPublicKey)
	if err != nil {
		return worker.Config{}, fmt.Errorf("config: decode JOB_TICKET_PUBLIC_KEY: %w", err)
	}
	if len(pub) == 0 {
		return worker.Config{}, fmt.Errorf("config: JOB_TICKET_PUBLIC_KEY is required")
	}
	return worker.Config{
		WorkerID:     c.WorkerID,
		PollInterval: c.PollInterval,
		PublicKey:    pub,
		HMACSecret:   c.WorkerHMACSecret,
	}, nil
}

// SlogLevel translates LOG_LEVEL into a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
