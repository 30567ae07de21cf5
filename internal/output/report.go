// Package output renders run snapshots for the terminal: a coalescing
// progress stream during the run and a final text or JSON report.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/torosent/netprobe/internal/metrics"
)

// PrintReport outputs a human-readable summary of a terminal snapshot.
func PrintReport(w io.Writer, s metrics.Snapshot) {
	fmt.Fprintln(w, "\n--- Run Results ---")
	if s.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", s.RunID)
	}
	if s.Err != nil {
		fmt.Fprintf(w, "Run failed:        %v\n", s.Err)
		return
	}
	if s.Outcome != nil {
		fmt.Fprintf(w, "Outcome:           %s\n", s.Outcome)
		if s.Outcome.Snippet != "" {
			fmt.Fprintf(w, "Response snippet:  %.120s\n", s.Outcome.Snippet)
		}
		fmt.Fprintf(w, "Latency:           %s\n", s.Outcome.Latency)
		return
	}

	fmt.Fprintf(w, "Total Probes:      %d\n", s.Total)
	fmt.Fprintf(w, "Completed:         %d\n", s.Completed)
	fmt.Fprintf(w, "Succeeded:         %d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed:            %d\n", s.Failed)
	if s.Cancelled {
		fmt.Fprintln(w, "Cancelled:         yes")
	}
	fmt.Fprintf(w, "Duration:          %s\n", s.Elapsed)
	fmt.Fprintf(w, "Probes/sec:        %.2f\n", s.RequestsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", s.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", s.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", s.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", s.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", s.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", s.P99Latency)
}

type jsonReport struct {
	RunID          string             `json:"run_id,omitempty"`
	Total          int64              `json:"total"`
	Completed      int64              `json:"completed"`
	Succeeded      int64              `json:"succeeded"`
	Failed         int64              `json:"failed"`
	Cancelled      bool               `json:"cancelled,omitempty"`
	Outcome        string             `json:"outcome,omitempty"`
	Error          string             `json:"error,omitempty"`
	RequestsPerSec float64            `json:"requests_per_sec"`
	Latency        map[string]float64 `json:"latency_ms"`
}

// PrintJSONReport outputs a JSON-formatted report of a terminal snapshot.
func PrintJSONReport(w io.Writer, s metrics.Snapshot) error {
	report := jsonReport{
		RunID:          s.RunID,
		Total:          s.Total,
		Completed:      s.Completed,
		Succeeded:      s.Succeeded,
		Failed:         s.Failed,
		Cancelled:      s.Cancelled,
		RequestsPerSec: s.RequestsPerSec,
		Latency:        s.MillisecondFields(),
	}
	if s.Outcome != nil {
		report.Outcome = s.Outcome.String()
	}
	if s.Err != nil {
		report.Error = s.Err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// FormatProgress renders a single-line progress update for a snapshot.
func FormatProgress(s metrics.Snapshot) string {
	return fmt.Sprintf("\rProbes: %d/%d | Succeeded: %d | Failed: %d | RPS: %.1f",
		s.Completed, s.Total, s.Succeeded, s.Failed, s.RequestsPerSec)
}
