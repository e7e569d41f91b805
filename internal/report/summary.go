package report

import (
	"encoding/json"
	"io"
	"time"

	"CascadeReplay/internal/replay"
)

// RunSummary is the JSON document written at the end of a run: replay
// counters, aggregate findings, and run identity.
type RunSummary struct {
	RunID        string `json:"run_id"`
	AnalysisType string `json:"analysis_type"`
	SnapshotTime string `json:"snapshot_time"`
	WindowStart  string `json:"window_start"`
	WindowEnd    string `json:"window_end"`

	Replay   replay.Summary `json:"replay"`
	Findings KeyFindings    `json:"key_findings"`
}

// NewRunSummary assembles the run summary document.
func NewRunSummary(runID string, snapshotTime, windowStart, windowEnd int64, rs *replay.Summary, findings KeyFindings) *RunSummary {
	fmtMs := func(ms int64) string {
		if ms == 0 {
			return ""
		}
		return time.UnixMilli(ms).UTC().Format(time.RFC3339)
	}
	return &RunSummary{
		RunID:        runID,
		AnalysisType: "real-time account state replay",
		SnapshotTime: fmtMs(snapshotTime),
		WindowStart:  fmtMs(windowStart),
		WindowEnd:    fmtMs(windowEnd),
		Replay:       *rs,
		Findings:     findings,
	}
}

// WriteJSON writes the summary as indented JSON.
func (s *RunSummary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
