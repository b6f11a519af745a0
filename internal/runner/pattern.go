package runner

import (
	"fmt"
	"strings"
	"time"

	"poolprobe/internal/errors"
)

// Mode is how a pattern spaces its attempts.
type Mode string

// Modes.
const (
	// ModeFixedDelay runs attempts one at a time with Delay between them.
	ModeFixedDelay Mode = "fixed"
	// ModeConcurrent starts every attempt at once on a shared session.
	ModeConcurrent Mode = "concurrent"
	// ModeJitter runs attempts one at a time with a uniform random wait in
	// [JitterMin, JitterMax] between them.
	ModeJitter Mode = "jitter"
)

// Default jitter bounds.
const (
	DefaultJitterMin = 100 * time.Millisecond
	DefaultJitterMax = 1000 * time.Millisecond
)

// Pattern is one timing profile of the sweep.
type Pattern struct {
	Name      string        `json:"name"`
	Title     string        `json:"title,omitempty"`
	Mode      Mode          `json:"mode"`
	Count     int           `json:"count"`
	Delay     time.Duration `json:"delay,omitempty"`
	JitterMin time.Duration `json:"jitter_min,omitempty"`
	JitterMax time.Duration `json:"jitter_max,omitempty"`
}

// DefaultPlan is the five-pattern sweep.
func DefaultPlan() []Pattern {
	return []Pattern{
		{Name: "rapid_fire", Title: "Rapid Fire (10 requests, no delay)", Mode: ModeFixedDelay, Count: 10},
		{Name: "delayed_500ms", Title: "With 500ms Delay (10 requests)", Mode: ModeFixedDelay, Count: 10, Delay: 500 * time.Millisecond},
		{Name: "delayed_2000ms", Title: "With 2000ms Delay (5 requests)", Mode: ModeFixedDelay, Count: 5, Delay: 2000 * time.Millisecond},
		{Name: "parallel", Title: "Parallel Requests (5 concurrent)", Mode: ModeConcurrent, Count: 5},
		{
			Name: "random_jitter", Title: "Random Jitter (10 requests, 100-1000ms random delay)",
			Mode: ModeJitter, Count: 10, JitterMin: DefaultJitterMin, JitterMax: DefaultJitterMax,
		},
	}
}

// RestorePatterns fills Pattern on runs that lost it, matching by name
// against plan. The results file keeps only names and attempts.
func RestorePatterns(runs []PatternRun, plan []Pattern) {
	for i := range runs {
		if runs[i].Pattern.Mode != "" {
			continue
		}
		for _, p := range plan {
			if p.Name == runs[i].Name {
				runs[i].Pattern = p
				break
			}
		}
	}
}

// Validate checks counts and bounds and fills jitter defaults.
func (p *Pattern) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: pattern has no name", errors.ErrConfigInvalid)
	}
	if p.Count < 0 {
		return fmt.Errorf("%w: pattern %s has negative count %d", errors.ErrConfigInvalid, p.Name, p.Count)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: pattern %s has negative delay", errors.ErrConfigInvalid, p.Name)
	}
	switch p.Mode {
	case ModeFixedDelay, ModeConcurrent:
	case ModeJitter:
		if p.JitterMin == 0 && p.JitterMax == 0 {
			p.JitterMin, p.JitterMax = DefaultJitterMin, DefaultJitterMax
		}
		if p.JitterMin < 0 || p.JitterMax < p.JitterMin {
			return fmt.Errorf("%w: pattern %s has jitter range [%s, %s]",
				errors.ErrConfigInvalid, p.Name, p.JitterMin, p.JitterMax)
		}
	default:
		return fmt.Errorf("%w: pattern %s has unknown mode %q", errors.ErrConfigInvalid, p.Name, p.Mode)
	}
	return nil
}

// Heading is the console banner line for the pattern.
func (p Pattern) Heading() string {
	if p.Title != "" {
		return p.Title
	}
	return p.Name
}

// SelectPatterns returns the patterns of plan named in names, in plan order.
// An empty names selects the whole plan.
func SelectPatterns(plan []Pattern, names []string) ([]Pattern, error) {
	if len(names) == 0 {
		return plan, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	var out []Pattern
	for _, p := range plan {
		if want[p.Name] {
			out = append(out, p)
			delete(want, p.Name)
		}
	}
	for n := range want {
		return nil, errors.Wrapf(errors.ErrUnknownPattern, "%q", n)
	}
	return out, nil
}
