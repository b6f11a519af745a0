package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"poolprobe/internal/banner"
	"poolprobe/internal/config"
	"poolprobe/internal/logging"
	"poolprobe/internal/storage"
)

// Version is stamped at build time with -ldflags "-X poolprobe/cmd.Version=...".
var Version = "dev"

var (
	cfgFile string
	envFile string
	verbose bool
	quiet   bool
	logDir  string

	v      = config.New()
	logger = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:   "poolprobe",
	Short: "poolprobe - ERP session pool contamination probe",
	Long: `
poolprobe checks whether an ERP vendor's pooled UI sessions leak state between
API calls. It authenticates once per pattern, submits throwaway price page
transactions under several timing patterns and reports whether failures look
like a contaminated session pool.

Running poolprobe without a subcommand performs a full sweep.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		logger = logging.Init(logging.Options{
			Verbose:   verbose,
			Quiet:     quiet,
			Dir:       logDir,
			NoConsole: useTUI,
		})
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		logging.Close()
	},
	RunE: runSweep,
}

// Execute runs the command tree. Interrupts cancel the running sweep, which
// still reports what it collected.
func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		fmt.Fprint(cmd.OutOrStdout(), banner.For(cmd.OutOrStdout()))
		_ = cmd.Usage()
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.poolprobe.yaml)")
	pf.StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file with P21_* settings")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only warnings and errors")
	pf.StringVar(&logDir, "log-dir", "", `log directory (default ~/.poolprobe/logs, "-" disables)`)

	pf.String("base-url", "", "ERP base URL (P21_BASE_URL)")
	pf.String("username", "", "API user (P21_USERNAME)")
	pf.String("token-mode", config.TokenModeV1, "token exchange: v1 headers or v2 JSON body (P21_TOKEN_MODE)")
	pf.Bool("verify-ssl", false, "verify the server certificate (P21_VERIFY_SSL)")
	pf.Duration("request-timeout", config.DefaultRequestTimeout, "timeout per transaction attempt")
	pf.Duration("settle", config.DefaultSettlePause, "pause between patterns")
	pf.String("history", "", "history database (default ~/.poolprobe/history.db)")

	bindFlags(v, map[string]string{
		"base_url":        "base-url",
		"username":        "username",
		"token_mode":      "token-mode",
		"verify_ssl":      "verify-ssl",
		"request_timeout": "request-timeout",
		"settle_pause":    "settle",
		"history_path":    "history",
	})

	addSweepFlags(rootCmd)
	rootCmd.AddCommand(sweepCmd, runCmd, authCmd, historyCmd, dummyCmd, versionCmd)
}

func bindFlags(v *viper.Viper, keys map[string]string) {
	for key, flag := range keys {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// loadConfig resolves flags, P21_* variables, the env file and the YAML file.
func loadConfig(ctx context.Context) (*config.Config, error) {
	return config.Load(logger.WithContext(ctx), v, config.Sources{
		ConfigFile: cfgFile,
		EnvFile:    envFile,
	})
}

// historyPath is the configured database, or the default under the data dir.
func historyPath(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.HistoryPath != "" {
		return cfg.HistoryPath, nil
	}
	if p := v.GetString("history_path"); p != "" {
		return p, nil
	}
	home, err := logging.Home()
	if err != nil {
		return "", err
	}
	return storage.DefaultPath(home), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the poolprobe version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "poolprobe %s\n", Version)
	},
}
