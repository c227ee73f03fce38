// Package config reads process configuration from environment variables and
// loads the optional YAML governance profile (manifests, space policies,
// firewall scopes).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/contracts"
)

// Config holds process-level configuration.
type Config struct {
	// Environment the policy chain evaluates against (development,
	// staging, production).
	Environment contracts.Environment

	LogLevel string

	// Audit chain identifier for this process.
	ChainID string

	// ProfilePath points at the YAML governance profile; empty means
	// everything is registered programmatically.
	ProfilePath string

	// Master seed for per-segment attestation keys (hex or raw, >=32 bytes).
	AttestMasterSecret string

	// Worker settings.
	WorkerID         string
	WorkerHMACSecret string
	TicketPublicKey  string
	PollInterval     time.Duration

	// Optional backends; empty selects in-memory implementations.
	RedisAddr  string
	ArchiveDSN string

	// Step-up proof signing secret.
	StepUpSecret string

	OTLPEndpoint string
	OTelEnabled  bool
}

// Load reads configuration from environment variables, applying defaults
// for everything optional.
func Load() (*Config, error) {
	env := contracts.Environment(getEnv("COREOS_ENV", string(contracts.EnvDevelopment)))
	switch env {
	case contracts.EnvDevelopment, contracts.EnvStaging, contracts.EnvProduction:
	default:
		return nil, fmt.Errorf("config: unknown environment %q", env)
	}

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		hostname, _ := os.Hostname()
		workerID = fmt.Sprintf("worker-%s-%d", hostname, os.Getpid())
	}

	pollSec, _ := strconv.Atoi(os.Getenv("POLL_INTERVAL_SECONDS"))
	if pollSec <= 0 {
		pollSec = 5
	}

	return &Config{
		Environment:        env,
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		ChainID:            getEnv("AUDIT_CHAIN_ID", "coreos-audit"),
		ProfilePath:        os.Getenv("GOVERNANCE_PROFILE"),
		AttestMasterSecret: os.Getenv("ATTEST_MASTER_SECRET"),
		WorkerID:           workerID,
		WorkerHMACSecret:   os.Getenv("JOB_WORKER_HMAC_SECRET"),
		TicketPublicKey:    os.Getenv("JOB_TICKET_PUBLIC_KEY"),
		PollInterval:       time.Duration(pollSec) * time.Second,
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		ArchiveDSN:         os.Getenv("ARCHIVE_DSN"),
		StepUpSecret:       os.Getenv("STEP_UP_SECRET"),
		OTLPEndpoint:       getEnv("OTLP_ENDPOINT", "localhost:4317"),
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
