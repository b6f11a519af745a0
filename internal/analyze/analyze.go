// Package analyze turns a sweep into a pool health report.
package analyze

import (
	"sort"
	"time"

	"poolprobe/internal/runner"
	"poolprobe/internal/stats"
)

// Health is the overall verdict on the session pool.
type Health string

// Health values.
const (
	Healthy             Health = "healthy"
	LikelyContamination Health = "likely_contamination"
	Intermittent        Health = "intermittent"
)

// Thresholds.
const (
	// ContaminationRate is the failure rate above which the pool is
	// considered contaminated.
	ContaminationRate = 0.3
	// MinAlternatingRun is the shortest run checked for alternation.
	MinAlternatingRun = 4
	// ConsecutiveFailureFlag is exceeded before a streak is flagged.
	ConsecutiveFailureFlag = 2
)

// PatternReport summarizes one pattern run.
type PatternReport struct {
	Name                    string        `json:"name"`
	Total                   int           `json:"total"`
	Succeeded               int           `json:"succeeded"`
	Failed                  int           `json:"failed"`
	SuccessRate             float64       `json:"success_rate"`
	Alternating             bool          `json:"alternating"`
	MaxConsecutiveFailures  int           `json:"max_consecutive_failures"`
	ConsecutiveFailuresFlag bool          `json:"consecutive_failures_flagged"`
	Latency                 stats.Summary `json:"latency"`
}

// KindCount is one failure-kind histogram bucket.
type KindCount struct {
	Kind  runner.ErrorKind `json:"kind"`
	Count int              `json:"count"`
}

// Report is the structured analysis of a sweep.
type Report struct {
	SweepID            string          `json:"sweep_id,omitempty"`
	BaseURL            string          `json:"base_url,omitempty"`
	Started            time.Time       `json:"started"`
	Patterns           []PatternReport `json:"patterns"`
	TotalRequests      int             `json:"total_requests"`
	TotalFailures      int             `json:"total_failures"`
	OverallSuccessRate float64         `json:"overall_success_rate"`
	FailureKinds       []KindCount     `json:"failure_kinds"`
	Health             Health          `json:"health"`
	Notes              []string        `json:"notes"`
}

// Analyze computes the report for sw. It has no side effects.
func Analyze(sw *runner.Sweep) Report {
	rep := Report{
		SweepID:      sw.ID,
		BaseURL:      sw.BaseURL,
		Started:      sw.Started,
		Patterns:     make([]PatternReport, 0, len(sw.Runs)),
		FailureKinds: []KindCount{},
		Notes:        []string{},
	}
	kinds := map[runner.ErrorKind]int{}

	for _, run := range sw.Runs {
		pr := Pattern(run)
		rep.Patterns = append(rep.Patterns, pr)
		rep.TotalRequests += pr.Total
		rep.TotalFailures += pr.Failed

		for _, r := range run.Results {
			if r.Success {
				continue
			}
			k := r.ErrorType
			if k == runner.KindNone {
				k = "Unknown"
			}
			kinds[k]++
		}
	}

	rep.OverallSuccessRate = rate(rep.TotalRequests-rep.TotalFailures, rep.TotalRequests)
	rep.FailureKinds = sortKinds(kinds)
	rep.Health = classify(rep.TotalFailures, rep.TotalRequests)

	switch rep.Health {
	case Healthy:
		rep.Notes = append(rep.Notes, "No failures detected - session pool appears healthy")
	case LikelyContamination:
		rep.Notes = append(rep.Notes,
			"High failure rate (>30%) - likely session pool contamination",
			"Consider using async endpoint or implementing retry logic")
	case Intermittent:
		rep.Notes = append(rep.Notes,
			"Intermittent failures detected",
			"Pattern suggests session pool issues")
	}
	if kinds[runner.KindUnexpectedWindow] > 0 {
		rep.Notes = append(rep.Notes,
			"'Unexpected window' errors confirm dirty session pool",
			"Previous operations left dialogs open in pooled sessions")
	}
	return rep
}

// Pattern summarizes a single run.
func Pattern(run runner.PatternRun) PatternReport {
	pr := PatternReport{Name: run.Name, Total: len(run.Results)}
	elapsed := make([]int64, 0, len(run.Results))
	for _, r := range run.Results {
		if r.Success {
			pr.Succeeded++
		}
		elapsed = append(elapsed, r.ElapsedMs)
	}
	pr.Failed = pr.Total - pr.Succeeded
	pr.SuccessRate = rate(pr.Succeeded, pr.Total)
	pr.Alternating = Alternating(run.Results)
	pr.MaxConsecutiveFailures = MaxConsecutiveFailures(run.Results)
	pr.ConsecutiveFailuresFlag = pr.MaxConsecutiveFailures > ConsecutiveFailureFlag
	pr.Latency = stats.Summarize(elapsed)
	return pr
}

// Alternating reports whether a run of at least four attempts flips between
// success and failure on every step.
func Alternating(results []runner.AttemptResult) bool {
	if len(results) < MinAlternatingRun {
		return false
	}
	for i := 1; i < len(results); i++ {
		if results[i].Success == results[i-1].Success {
			return false
		}
	}
	return true
}

// MaxConsecutiveFailures is the longest streak of failed attempts.
func MaxConsecutiveFailures(results []runner.AttemptResult) int {
	longest, cur := 0, 0
	for _, r := range results {
		if r.Success {
			cur = 0
			continue
		}
		cur++
		if cur > longest {
			longest = cur
		}
	}
	return longest
}

func classify(failures, total int) Health {
	switch {
	case failures == 0:
		return Healthy
	case float64(failures)/float64(total) > ContaminationRate:
		return LikelyContamination
	default:
		return Intermittent
	}
}

// sortKinds orders by count descending, then name ascending.
func sortKinds(m map[runner.ErrorKind]int) []KindCount {
	out := make([]KindCount, 0, len(m))
	for k, n := range m {
		out = append(out, KindCount{Kind: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}
