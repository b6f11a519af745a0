package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"poolprobe/internal/analyze"
	"poolprobe/internal/config"
	"poolprobe/internal/export"
	"poolprobe/internal/storage"
)

var (
	historyLimit int
	historyJSON  bool
	exportPrefix string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded sweeps",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded sweeps, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(func(s *storage.Store) error {
			recs, err := s.List(historyLimit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if historyJSON {
				sums := make([]storage.Summary, 0, len(recs))
				for _, r := range recs {
					sums = append(sums, r.Summary())
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(sums)
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "No sweeps recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tURL\tREQUESTS\tSUCCESS\tP99 MS\tHEALTH")
			for _, r := range recs {
				sum := r.Summary()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.1f%%\t%.0f\t%s\n",
					sum.ID, sum.Timestamp.Local().Format(time.DateTime), sum.BaseURL,
					sum.TotalRequests, sum.SuccessRate*100, sum.P99LatencyMs, sum.Health)
			}
			return tw.Flush()
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the report of a recorded sweep (id or unique prefix)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *storage.Store) error {
			rec, err := s.Get(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if historyJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec.Report)
			}
			fmt.Fprintf(out, "Sweep %s at %s against %s\n", rec.ID, rec.Timestamp.Local().Format(time.DateTime), rec.BaseURL)
			fmt.Fprintln(out, rec.Report.Render())
			return nil
		})
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write results, CSV and report files for a recorded sweep",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *storage.Store) error {
			rec, err := s.Get(args[0])
			if err != nil {
				return err
			}
			prefix := exportPrefix
			if prefix == "" {
				prefix = "poolprobe_" + rec.ID
			}
			written, err := export.Outputs{
				Results:  prefix + ".json",
				CSV:      prefix + ".csv",
				Report:   prefix + ".report.json",
				Timeline: prefix + ".timeline.json",
			}.Write(rec.Sweep(), rec.Report)
			for _, p := range written {
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", p)
			}
			return err
		})
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a recorded sweep",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *storage.Store) error {
			rec, err := s.Get(args[0])
			if err != nil {
				return err
			}
			if err := s.Delete(rec.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", rec.ID)
			return nil
		})
	},
}

var historyImportCmd = &cobra.Command{
	Use:   "import <results.json>",
	Short: "Analyze a saved results file and record it in history",
	Long: `Reads a results file written by --out, re-runs the analysis and stores
it as a new sweep. --base-url, when given, labels the imported sweep.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(s *storage.Store) error {
			sw, err := export.ReadResults(args[0])
			if err != nil {
				return err
			}
			sw.ID = uuid.NewString()
			sw.BaseURL = v.GetString("base_url")
			if sw.Started.IsZero() {
				sw.Started = time.Now()
			}

			rep := analyze.Analyze(sw)
			if err := s.Save(storage.NewRecord(sw, rep)); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported sweep %s into %s\n", sw.ID, s.Path())
			fmt.Fprintln(out, rep.Render())
			return nil
		})
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum sweeps to list (0 for all)")
	historyListCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON")
	historyShowCmd.Flags().BoolVar(&historyJSON, "json", false, "print the report as JSON")
	historyExportCmd.Flags().StringVarP(&exportPrefix, "out", "o", "", "output file prefix (default poolprobe_<id>)")

	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyExportCmd, historyImportCmd, historyDeleteCmd)
}

// withStore opens the history database without requiring ERP credentials.
// The config and env files are still read so history_path set there applies.
func withStore(fn func(*storage.Store) error) error {
	if err := config.LoadFiles(v, config.Sources{ConfigFile: cfgFile, EnvFile: envFile}); err != nil {
		return err
	}
	path, err := historyPath(nil)
	if err != nil {
		return err
	}
	s, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
