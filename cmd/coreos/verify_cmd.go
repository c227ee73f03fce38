package main

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/attest"
	"github.com/gemimi2525-star/super-platform-sub002/pkg/audit"
)

// runVerifyCmd implements `coreos verify`.
//
// Validates a JSONL audit segment: chain continuity and record hashes, and
// optionally the Ed25519 attestation manifest.
//
// Exit codes:
//
//	0 = verification passed
//	1 = verification failed
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		segmentPath  string
		manifestPath string
		pubKeyB64    string
		jsonOutput   bool
	)
	cmd.StringVar(&segmentPath, "segment", "", "Path to JSONL segment file (REQUIRED)")
	cmd.StringVar(&manifestPath, "manifest", "", "Path to attestation manifest JSON")
	cmd.StringVar(&pubKeyB64, "pubkey", "", "Base64 Ed25519 public key (defaults to the manifest's embedded key)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if segmentPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -segment is required")
		return 2
	}

	segment, err := os.ReadFile(segmentPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot read segment: %v\n", err)
		return 2
	}

	chainResult, err := audit.ValidateJSONLExport(segment)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot parse segment: %v\n", err)
		return 2
	}

	report := struct {
		Segment      string                 `json:"segment"`
		ChainValid   bool                   `json:"chainValid"`
		Chain        audit.ValidationResult `json:"chain"`
		Attested     bool                   `json:"attested"`
		AttestError  string                 `json:"attestError,omitempty"`
		ManifestPath string                 `json:"manifestPath,omitempty"`
	}{
		Segment:      segmentPath,
		ChainValid:   chainResult.Valid,
		Chain:        chainResult,
		ManifestPath: manifestPath,
	}

	if manifestPath != "" {
		manifestData, err := os.ReadFile(manifestPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot read manifest: %v\n", err)
			return 2
		}
		var m attest.Manifest
		if err := json.Unmarshal(manifestData, &m); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot parse manifest: %v\n", err)
			return 2
		}

		keyB64 := pubKeyB64
		if keyB64 == "" {
			keyB64 = m.PublicKey
		}
		pub, err := base64.StdEncoding.DecodeString(keyB64)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: cannot decode public key: %v\n", err)
			return 2
		}

		if err := attest.Verify(m, segment, ed25519.PublicKey(pub)); err != nil {
			report.AttestError = err.Error()
		} else {
			report.Attested = true
		}
	}

	passed := report.ChainValid && (manifestPath == "" || report.Attested)

	if jsonOutput {
		data, _ := json.MarshalIndent(report, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		if passed {
			_, _ = fmt.Fprintf(stdout, "Segment verification PASSED\n")
			_, _ = fmt.Fprintf(stdout, "Segment: %s (%d records)\n", segmentPath, chainResult.CheckedLen)
			if report.Attested {
				_, _ = fmt.Fprintln(stdout, "Attestation: valid")
			}
		} else {
			_, _ = fmt.Fprintf(stdout, "Segment verification FAILED\n")
			if !report.ChainValid {
				_, _ = fmt.Fprintf(stdout, "  chain: seq %d: %s\n", chainResult.FailedSeq, chainResult.Reason)
			}
			if report.AttestError != "" {
				_, _ = fmt.Fprintf(stdout, "  attestation: %s\n", report.AttestError)
			}
		}
	}

	if !passed {
		return 1
	}
	return 0
}
