package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"poolprobe/internal/cli"
	"poolprobe/internal/config"
	"poolprobe/internal/errors"
	"poolprobe/internal/export"
	"poolprobe/internal/runner"
	"poolprobe/internal/storage"
	"poolprobe/internal/tui/app"
)

var (
	outFile      string
	csvFile      string
	reportFile   string
	timelineFile string
	patternNames []string
	seed         int64
	useTUI       bool
	noHistory    bool
	countFlag    int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the five-pattern sweep and analyze the session pool",
	Long: `Runs rapid_fire, delayed_500ms, delayed_2000ms, parallel and random_jitter
against the configured server, then prints the analysis. Use --patterns to run a
subset.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

var runCmd = &cobra.Command{
	Use:   "run <pattern> [pattern...]",
	Short: "Run selected patterns only",
	Example: `  poolprobe run rapid_fire
  poolprobe run parallel --count 20`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patternNames = args
		return runSweep(cmd, nil)
	},
}

func addSweepFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&outFile, "out", "o", "", "results JSON file (default "+config.DefaultResultsFile+")")
	f.StringVar(&csvFile, "csv", "", "also write attempts as CSV")
	f.StringVar(&reportFile, "report-json", "", "also write the analysis as JSON")
	f.StringVar(&timelineFile, "timeline", "", "also write per-second buckets as JSON")
	f.Int64Var(&seed, "seed", 0, "seed for jitter waits (0 uses the clock)")
	f.BoolVar(&useTUI, "tui", false, "follow the sweep in the interactive UI")
	f.BoolVar(&noHistory, "no-history", false, "do not record the sweep in history")
}

func init() {
	addSweepFlags(sweepCmd)
	sweepCmd.Flags().StringSliceVarP(&patternNames, "patterns", "p", nil, "comma separated pattern names")
	rootCmd.Flags().StringSliceVarP(&patternNames, "patterns", "p", nil, "comma separated pattern names")

	addSweepFlags(runCmd)
	runCmd.Flags().IntVarP(&countFlag, "count", "n", 0, "override the attempt count of each pattern")
}

// buildPlan selects patterns from the default plan and applies --count.
func buildPlan(names []string, count int) ([]runner.Pattern, error) {
	plan, err := runner.SelectPatterns(runner.DefaultPlan(), names)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: --count cannot be negative", errors.ErrConfigInvalid)
	}
	if count > 0 {
		for i := range plan {
			plan[i].Count = count
		}
	}
	return plan, nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	plan, err := buildPlan(patternNames, countFlag)
	if err != nil {
		return err
	}

	results := outFile
	if results == "" {
		results = cfg.ResultsFile
	}
	outputs := export.Outputs{
		Results:  results,
		CSV:      csvFile,
		Report:   reportFile,
		Timeline: timelineFile,
	}

	hist := ""
	if !noHistory {
		if hist, err = historyPath(cfg); err != nil {
			logger.Warn().Err(err).Msg("history disabled")
			hist = ""
		}
	}

	if useTUI {
		return runTUI(ctx, cfg, plan, outputs, hist)
	}

	_, err = cli.Start(ctx, cli.Options{
		Config:      cfg,
		Plan:        plan,
		Outputs:     outputs,
		HistoryPath: hist,
		Seed:        seed,
		Out:         cmd.OutOrStdout(),
		Logger:      logger,
		ShowBanner:  !quiet,
	})
	return err
}

func runTUI(ctx context.Context, cfg *config.Config, plan []runner.Pattern, outputs export.Outputs, hist string) error {
	var store *storage.Store
	if hist != "" {
		s, err := storage.Open(hist)
		if err != nil {
			logger.Warn().Err(err).Str("path", hist).Msg("history unavailable")
		} else {
			store = s
			defer store.Close()
		}
	}

	m := app.NewModel(app.Options{
		Config:    cfg,
		Plan:      plan,
		Store:     store,
		Outputs:   outputs,
		Seed:      seed,
		AutoStart: true,
		Logger:    logger,
	})
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run interactive UI")
	}
	return nil
}
