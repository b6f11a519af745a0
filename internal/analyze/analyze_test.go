package analyze

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poolprobe/internal/runner"
)

// outcomes builds a run from a string of 'o' (ok) and 'x' (fail) markers.
func outcomes(name, marks string, kind runner.ErrorKind) runner.PatternRun {
	run := runner.PatternRun{Name: name}
	for i, m := range marks {
		r := runner.AttemptResult{Attempt: i + 1, ElapsedMs: int64(100 * (i + 1)), Success: m == 'o'}
		if !r.Success {
			r.ErrorType = kind
			r.StatusCode = 500
		}
		run.Results = append(run.Results, r)
	}
	return run
}

func TestAlternating(t *testing.T) {
	tests := []struct {
		marks string
		want  bool
	}{
		{"oxox", true},
		{"xoxoxo", true},
		{"oxo", false},
		{"", false},
		{"oxxo", false},
		{"oooo", false},
	}
	for _, tt := range tests {
		t.Run(tt.marks, func(t *testing.T) {
			assert.Equal(t, tt.want, Alternating(outcomes("p", tt.marks, runner.KindHTTP).Results))
		})
	}
}

func TestMaxConsecutiveFailures(t *testing.T) {
	tests := []struct {
		marks   string
		want    int
		flagged bool
	}{
		{"oooo", 0, false},
		{"oxxo", 2, false},
		{"oxxxo", 3, true},
		{"xxoxxxx", 4, true},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.marks, func(t *testing.T) {
			pr := Pattern(outcomes("p", tt.marks, runner.KindHTTP))
			assert.Equal(t, tt.want, pr.MaxConsecutiveFailures)
			assert.Equal(t, tt.flagged, pr.ConsecutiveFailuresFlag)
		})
	}
}

func TestAnalyze_Health(t *testing.T) {
	tests := []struct {
		name  string
		marks string
		want  Health
	}{
		{"no failures", "oooooooooo", Healthy},
		{"exactly 30 percent", "xxxooooooo", Intermittent},
		{"over 30 percent", "xxxxoooooo", LikelyContamination},
		{"single failure", "oooooooox", Intermittent},
		{"empty sweep", "", Healthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sw := &runner.Sweep{Runs: []runner.PatternRun{outcomes("p", tt.marks, runner.KindHTTP)}}
			assert.Equal(t, tt.want, Analyze(sw).Health)
		})
	}
}

func TestAnalyze_Sweep(t *testing.T) {
	mixed := outcomes("random_jitter", "oxoo", runner.KindValidation)
	mixed.Results = append(mixed.Results, runner.AttemptResult{Attempt: 5, ErrorType: runner.KindTransport})

	sw := &runner.Sweep{
		ID:      "abc",
		BaseURL: "https://erp.example.com",
		Runs: []runner.PatternRun{
			outcomes("rapid_fire", "oxoxoxoxox", runner.KindUnexpectedWindow),
			outcomes("parallel", "ooooo", ""),
			mixed,
		},
	}

	rep := Analyze(sw)

	assert.Equal(t, "abc", rep.SweepID)
	assert.Equal(t, 20, rep.TotalRequests)
	assert.Equal(t, 7, rep.TotalFailures)
	assert.InDelta(t, 0.65, rep.OverallSuccessRate, 1e-9)
	assert.Equal(t, LikelyContamination, rep.Health)

	require.Len(t, rep.Patterns, 3)
	assert.Equal(t, "rapid_fire", rep.Patterns[0].Name)
	assert.True(t, rep.Patterns[0].Alternating)
	assert.InDelta(t, 0.5, rep.Patterns[0].SuccessRate, 1e-9)
	assert.False(t, rep.Patterns[1].Alternating)
	assert.Equal(t, 1.0, rep.Patterns[1].SuccessRate)
	assert.Equal(t, int64(5), rep.Patterns[1].Latency.Count)

	assert.Equal(t, []KindCount{
		{Kind: runner.KindUnexpectedWindow, Count: 5},
		{Kind: runner.KindTransport, Count: 1},
		{Kind: runner.KindValidation, Count: 1},
	}, rep.FailureKinds, "count desc, then name asc")

	assert.Contains(t, rep.Notes, "'Unexpected window' errors confirm dirty session pool")
}

func TestAnalyze_EmptyPattern(t *testing.T) {
	rep := Analyze(&runner.Sweep{Runs: []runner.PatternRun{{Name: "parallel"}}})

	require.Len(t, rep.Patterns, 1)
	assert.Zero(t, rep.Patterns[0].SuccessRate)
	assert.Zero(t, rep.OverallSuccessRate)
	assert.Empty(t, rep.FailureKinds)
}

func TestAnalyze_UnknownKind(t *testing.T) {
	rep := Analyze(&runner.Sweep{Runs: []runner.PatternRun{outcomes("p", "x", "")}})
	require.Len(t, rep.FailureKinds, 1)
	assert.Equal(t, runner.ErrorKind("Unknown"), rep.FailureKinds[0].Kind)
}

func TestAnalyze_Pure(t *testing.T) {
	sw := &runner.Sweep{Runs: []runner.PatternRun{outcomes("p", "oxxxo", runner.KindHTTP)}}

	a, err := json.Marshal(Analyze(sw))
	require.NoError(t, err)
	b, err := json.Marshal(Analyze(sw))
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestRender(t *testing.T) {
	sw := &runner.Sweep{Runs: []runner.PatternRun{
		outcomes("rapid_fire", "oxoxox", runner.KindUnexpectedWindow),
		outcomes("delayed_500ms", "oxxxo", runner.KindHTTP),
	}}
	out := Analyze(sw).Render()

	for _, want := range []string{
		"SESSION POOL BEHAVIOR ANALYSIS",
		"\nRAPID_FIRE:\n",
		"  Total: 6, Success: 3, Failed: 3\n",
		"  Success Rate: 50.0%\n",
		"  [!] ALTERNATING PATTERN DETECTED!\n",
		"  [!] Max consecutive failures: 3\n",
		"  Total Requests: 11\n",
		"  Overall Success Rate: 45.5%\n",
		"    - UnexpectedWindow: 3\n",
		"    - HTTPError: 3\n",
		"  [!] High failure rate (>30%) - likely session pool contamination\n",
		"  [!] Previous operations left dialogs open in pooled sessions\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "HTTPError"), strings.Index(out, "UnexpectedWindow"),
		"ties sort by name")
}

func TestRender_Healthy(t *testing.T) {
	out := Analyze(&runner.Sweep{Runs: []runner.PatternRun{outcomes("p", "oooo", "")}}).Render()
	assert.Contains(t, out, "  [OK] No failures detected - session pool appears healthy\n")
	assert.NotContains(t, out, "Failure Types")
}
