package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/canonicalize"
)

// OutputMaxBytes caps stdout+stderr from a single sandboxed execution.
const OutputMaxBytes = 1024 * 1024

// Deterministic error codes for sandbox limit violations.
const (
	ErrComputeTimeExhausted   = "ERR_COMPUTE_TIME_EXHAUSTED"
	ErrComputeMemoryExhausted = "ERR_COMPUTE_MEMORY_EXHAUSTED"
	ErrComputeOutputExhausted = "ERR_COMPUTE_OUTPUT_EXHAUSTED"
)

// SandboxError is a typed error for sandbox limit violations.
type SandboxError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// SandboxConfig bounds a sandboxed tool execution.
type SandboxConfig struct {
	MemoryLimitBytes int64
	CPUTimeLimit     time.Duration
}

// Sandbox runs WASM tool modules under wazero with deny-by-default
// capabilities: no filesystem mounts, no network, no environment variables.
// Tools read canonical-JSON arguments from stdin and write a JSON result
// object to stdout.
type Sandbox struct {
	runtime wazero.Runtime
	config  SandboxConfig
}

// NewSandbox creates a WASI sandbox with the given limits.
func NewSandbox(ctx context.Context, cfg SandboxConfig) (*Sandbox, error) {
	rConfig := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitBytes > 0 {
		// wazero measures memory in 64KB pages
		pages := uint32(cfg.MemoryLimitBytes / 65536)
		if pages == 0 {
			pages = 1
		}
		rConfig = rConfig.WithMemoryLimitPages(pages)
	}
	r := wazero.NewRuntimeWithConfig(ctx, rConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
		_ = r.Close(ctx)
		return nil, fmt.Errorf("sandbox: instantiate wasi: %w", err)
	}
	return &Sandbox{runtime: r, config: cfg}, nil
}

// Run executes a WASM module with the given arguments and decodes its
// stdout as the result object.
func (s *Sandbox) Run(ctx context.Context, wasm []byte, args map[string]interface{}) (map[string]interface{}, error) {
	input, err := canonicalize.Canonical(args)
	if err != nil {
		return nil, fmt.Errorf("sandbox: encode args: %w", err)
	}

	execCtx := ctx
	if s.config.CPUTimeLimit > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, s.config.CPUTimeLimit)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	modConfig := wazero.NewModuleConfig().
		WithStdin(bytes.NewReader(input)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithName("tool-sandbox")

	compiled, err := s.runtime.CompileModule(execCtx, wasm)
	if err != nil {
		return nil, fmt.Errorf("sandbox: compile: %w", err)
	}
	defer func() { _ = compiled.Close(execCtx) }()

	mod, err := s.runtime.InstantiateModule(execCtx, compiled, modConfig)
	if err != nil {
		if execCtx.Err() != nil {
			return nil, &SandboxError{
				Code:    ErrComputeTimeExhausted,
				Message: fmt.Sprintf("execution exceeded time limit (%s)", s.config.CPUTimeLimit),
			}
		}
		if isMemoryError(err) {
			return nil, &SandboxError{
				Code:    ErrComputeMemoryExhausted,
				Message: fmt.Sprintf("execution exceeded memory limit (%d bytes)", s.config.MemoryLimitBytes),
			}
		}
		return nil, fmt.Errorf("sandbox: execution failed: %w", err)
	}
	defer func() { _ = mod.Close(execCtx) }()

	if stdout.Len()+stderr.Len() > OutputMaxBytes {
		return nil, &SandboxError{
			Code:    ErrComputeOutputExhausted,
			Message: fmt.Sprintf("output size %d exceeds limit %d", stdout.Len()+stderr.Len(), OutputMaxBytes),
		}
	}

	var result map[string]interface{}
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("sandbox: decode result: %w", err)
	}
	return result, nil
}

// Handler wraps a WASM module as a registry handler.
func (s *Sandbox) Handler(wasm []byte) Handler {
	return func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
		return s.Run(ctx, wasm, args)
	}
}

// Close shuts down the wazero runtime.
func (s *Sandbox) Close(ctx context.Context) error {
	return s.runtime.Close(ctx)
}

func isMemoryError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "memory") &&
		(strings.Contains(msg, "limit") || strings.Contains(msg, "grow") || strings.Contains(msg, "exceeded"))
}
