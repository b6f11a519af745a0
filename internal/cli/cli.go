// Package cli runs a sweep headless, printing progress lines and the final
// report to a writer.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"poolprobe/internal/analyze"
	"poolprobe/internal/banner"
	"poolprobe/internal/config"
	"poolprobe/internal/erp"
	"poolprobe/internal/errors"
	"poolprobe/internal/export"
	"poolprobe/internal/runner"
	"poolprobe/internal/storage"
	"poolprobe/internal/tui/styles"
)

var rule = strings.Repeat("=", 70)

// Options configures a headless sweep.
type Options struct {
	Config  *config.Config
	Plan    []runner.Pattern
	Outputs export.Outputs
	// HistoryPath is the bbolt file; empty skips history.
	HistoryPath string
	// Seed fixes jitter waits when non-zero.
	Seed       int64
	Out        io.Writer
	Logger     zerolog.Logger
	ShowBanner bool
}

// Console prints sweep progress in the classic probe layout.
type Console struct {
	w    io.Writer
	ok   lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style
}

// NewConsole styles output for w. Colors are dropped when w is not a terminal.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:    w,
		ok:   r.NewStyle().Foreground(styles.ColorSecondary).Bold(true),
		fail: r.NewStyle().Foreground(styles.ColorError).Bold(true),
		dim:  r.NewStyle().Foreground(styles.ColorSubtle),
	}
}

// PrintHeader prints the run banner.
func (c *Console) PrintHeader(baseURL string, now time.Time) {
	fmt.Fprintln(c.w, rule)
	fmt.Fprintln(c.w, "P21 Transaction API - Session Pool Behavior Test")
	fmt.Fprintln(c.w, rule)
	fmt.Fprintf(c.w, "Server: %s\n", baseURL)
	fmt.Fprintf(c.w, "Time: %s\n", now.Format(time.RFC3339))
}

// HandleEvent is a runner.Driver OnEvent callback.
func (c *Console) HandleEvent(ev runner.Event) {
	switch ev.Type {
	case runner.EventPatternStart:
		fmt.Fprintf(c.w, "\n%s\nTEST %d: %s\n%s\n", rule, ev.Index+1, ev.Pattern.Heading(), rule)
	case runner.EventAttempt:
		fmt.Fprintln(c.w, c.AttemptLine(ev.Result))
	case runner.EventSettle:
		fmt.Fprintln(c.w, c.dim.Render(fmt.Sprintf("  settling %s", ev.Pause)))
	}
}

// AttemptLine formats one result as "  [ n] OK|FAIL   ms - preview".
func (c *Console) AttemptLine(r runner.AttemptResult) string {
	status := c.fail.Render(r.Status())
	if r.Success {
		status = c.ok.Render(r.Status())
	}
	return fmt.Sprintf("  [%2d] %s %4dms - %s", r.Attempt, status, r.ElapsedMs, erp.Truncate(r.Preview, 50))
}

// PrintReport prints the analysis text and a colored verdict line.
func (c *Console) PrintReport(rep analyze.Report) {
	fmt.Fprintln(c.w, rep.Render())
	verdict := c.ok
	if rep.Health != analyze.Healthy {
		verdict = c.fail
	}
	fmt.Fprintf(c.w, "Verdict: %s\n", verdict.Render(string(rep.Health)))
}

// Start runs the sweep, prints the report and persists results and history.
// A cancelled sweep still reports and saves what it collected, then returns
// the context error.
func Start(ctx context.Context, opts Options) (*analyze.Report, error) {
	cfg := opts.Config
	con := NewConsole(opts.Out)
	log := opts.Logger

	if opts.ShowBanner {
		fmt.Fprint(opts.Out, banner.For(opts.Out))
	}
	con.PrintHeader(cfg.BaseURL, time.Now())

	plan := opts.Plan
	if len(plan) == 0 {
		plan = runner.DefaultPlan()
	}

	d := runner.NewDriverFromConfig(cfg, log)
	if opts.Seed != 0 {
		d.Seed(opts.Seed)
	}
	d.OnEvent = con.HandleEvent

	sw, runErr := d.Sweep(ctx, cfg.BaseURL, plan)
	if sw == nil {
		return nil, runErr
	}
	if runErr != nil {
		fmt.Fprintf(opts.Out, "\nSweep interrupted: %v\n", runErr)
	}

	rep := analyze.Analyze(sw)
	con.PrintReport(rep)

	written, err := opts.Outputs.Write(sw, rep)
	for _, p := range written {
		fmt.Fprintf(opts.Out, "Saved %s\n", p)
	}
	if err != nil {
		return &rep, errors.Wrap(err, "save results")
	}

	if opts.HistoryPath != "" {
		if err := saveHistory(opts.HistoryPath, sw, rep); err != nil {
			log.Warn().Err(err).Str("path", opts.HistoryPath).Msg("could not record sweep history")
		} else {
			fmt.Fprintf(opts.Out, "Recorded sweep %s in history\n", sw.ID)
		}
	}

	return &rep, runErr
}

func saveHistory(path string, sw *runner.Sweep, rep analyze.Report) error {
	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(storage.NewRecord(sw, rep))
}
