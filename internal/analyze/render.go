package analyze

import (
	"fmt"
	"strings"
)

var (
	heavyRule = strings.Repeat("=", 70)
	lightRule = strings.Repeat("-", 70)
)

// Render formats the report as the plain-text analysis printed after a sweep.
func (r Report) Render() string {
	var b strings.Builder

	b.WriteString("\n" + heavyRule + "\n")
	b.WriteString("SESSION POOL BEHAVIOR ANALYSIS\n")
	b.WriteString(heavyRule + "\n")

	for _, p := range r.Patterns {
		fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(p.Name))
		fmt.Fprintf(&b, "  Total: %d, Success: %d, Failed: %d\n", p.Total, p.Succeeded, p.Failed)
		fmt.Fprintf(&b, "  Success Rate: %.1f%%\n", p.SuccessRate*100)
		if p.Latency.Count > 0 {
			fmt.Fprintf(&b, "  Latency: p50 %.0fms, p90 %.0fms, p99 %.0fms, max %.0fms\n",
				p.Latency.P50Ms, p.Latency.P90Ms, p.Latency.P99Ms, p.Latency.MaxMs)
		}
		if p.Alternating {
			b.WriteString("  [!] ALTERNATING PATTERN DETECTED!\n")
		}
		if p.ConsecutiveFailuresFlag {
			fmt.Fprintf(&b, "  [!] Max consecutive failures: %d\n", p.MaxConsecutiveFailures)
		}
	}

	b.WriteString("\n" + lightRule + "\n")
	b.WriteString("SUMMARY:\n")
	fmt.Fprintf(&b, "  Total Requests: %d\n", r.TotalRequests)
	fmt.Fprintf(&b, "  Total Failures: %d\n", r.TotalFailures)
	fmt.Fprintf(&b, "  Overall Success Rate: %.1f%%\n", r.OverallSuccessRate*100)

	if len(r.FailureKinds) > 0 {
		b.WriteString("\n  Failure Types:\n")
		for _, k := range r.FailureKinds {
			fmt.Fprintf(&b, "    - %s: %d\n", k.Kind, k.Count)
		}
	}

	b.WriteString("\n" + lightRule + "\n")
	b.WriteString("CONCLUSIONS:\n")
	for _, n := range r.Notes {
		marker := "[!]"
		if r.Health == Healthy {
			marker = "[OK]"
		}
		fmt.Fprintf(&b, "  %s %s\n", marker, n)
	}

	return b.String()
}
