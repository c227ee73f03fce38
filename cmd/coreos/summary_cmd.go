package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gemimi2525-star/super-platform-sub002/pkg/audit"
)

// runSummaryCmd implements `coreos summary`: event counts and chain
// validity for an exported JSONL segment.
func runSummaryCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("summary", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		segmentPath string
		jsonOutput  bool
	)
	cmd.StringVar(&segmentPath, "segment", "", "Path to JSONL segment file (REQUIRED)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output summary as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if segmentPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: -segment is required")
		return 2
	}

	data, err := os.ReadFile(segmentPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot read segment: %v\n", err)
		return 2
	}

	records, err := audit.ParseJSONL(data)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: cannot parse segment: %v\n", err)
		return 2
	}

	summary := audit.GenerateExportSummary(records)

	if jsonOutput {
		out, _ := json.MarshalIndent(summary, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(out))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "Segment: %s\n", segmentPath)
	_, _ = fmt.Fprintf(stdout, "Records: %d (seq %d..%d)\n", summary.RecordCount, summary.FirstSeq, summary.LastSeq)
	_, _ = fmt.Fprintf(stdout, "Chain valid: %t\n", summary.ChainValid)
	for eventType, count := range summary.DecisionCounts {
		_, _ = fmt.Fprintf(stdout, "  %-24s %d\n", eventType, count)
	}
	return 0
}
