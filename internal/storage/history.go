// Package storage keeps a history of past sweeps.
package storage

import (
	"time"

	"poolprobe/internal/analyze"
	"poolprobe/internal/runner"
)

// MaxRecords is how many sweeps the store retains. Older ones are pruned on Save.
const MaxRecords = 100

// SweepRecord is one persisted sweep.
type SweepRecord struct {
	ID        string                  `json:"id"`
	Timestamp time.Time               `json:"timestamp"`
	BaseURL   string                  `json:"base_url"`
	Report    analyze.Report          `json:"report"`
	Runs      runner.ResultsByPattern `json:"runs,omitempty"`
	Patterns  []runner.Pattern        `json:"patterns,omitempty"`
}

// NewRecord builds a record from a finished sweep and its report.
func NewRecord(sw *runner.Sweep, rep analyze.Report) SweepRecord {
	ts := sw.Started
	if ts.IsZero() {
		ts = time.Now()
	}
	patterns := make([]runner.Pattern, 0, len(sw.Runs))
	for _, run := range sw.Runs {
		patterns = append(patterns, run.Pattern)
	}
	return SweepRecord{
		ID:        sw.ID,
		Timestamp: ts,
		BaseURL:   sw.BaseURL,
		Report:    rep,
		Runs:      runner.ResultsByPattern(sw.Runs),
		Patterns:  patterns,
	}
}

// Sweep rebuilds the sweep so it can be re-exported. Records saved before
// patterns were stored fall back to the default plan.
func (r SweepRecord) Sweep() *runner.Sweep {
	runs := make([]runner.PatternRun, len(r.Runs))
	copy(runs, r.Runs)
	runner.RestorePatterns(runs, r.Patterns)
	runner.RestorePatterns(runs, runner.DefaultPlan())
	return &runner.Sweep{
		ID:      r.ID,
		BaseURL: r.BaseURL,
		Started: r.Timestamp,
		Runs:    runs,
	}
}

// Summary is the row shown in history listings.
type Summary struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	BaseURL       string         `json:"base_url"`
	TotalRequests int            `json:"total_requests"`
	TotalFailures int            `json:"total_failures"`
	SuccessRate   float64        `json:"success_rate"`
	Health        analyze.Health `json:"health"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
}

// Summary condenses the record for listings. P99 is the worst pattern p99.
func (r SweepRecord) Summary() Summary {
	s := Summary{
		ID:            r.ID,
		Timestamp:     r.Timestamp,
		BaseURL:       r.BaseURL,
		TotalRequests: r.Report.TotalRequests,
		TotalFailures: r.Report.TotalFailures,
		SuccessRate:   r.Report.OverallSuccessRate,
		Health:        r.Report.Health,
	}
	for _, p := range r.Report.Patterns {
		if p.Latency.P99Ms > s.P99LatencyMs {
			s.P99LatencyMs = p.Latency.P99Ms
		}
	}
	return s
}
