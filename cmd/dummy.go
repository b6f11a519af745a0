package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"poolprobe/internal/dummy"
	"poolprobe/internal/erp"
)

var (
	dummyPort     int
	dummyMode     string
	dummyLatency  time.Duration
	dummyUser     string
	dummyPassword string
)

var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a fake ERP vendor for local experiments",
	Long: `Serves the token, UI router and transaction endpoints locally.

Modes:
  healthy       every transaction is accepted
  contaminated  every second transaction fails with an unexpected response window
  flaky         random HTTP 500s and validation rejections
  reject        HTTP 200 with every record rejected`,
	Example: `  poolprobe dummy --mode contaminated &
  P21_BASE_URL=http://localhost:8080 P21_USERNAME=api P21_PASSWORD=pw poolprobe`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode := dummy.Mode(dummyMode)
		switch mode {
		case dummy.ModeHealthy, dummy.ModeContaminated, dummy.ModeFlaky, dummy.ModeReject:
		default:
			return fmt.Errorf("unknown mode %q", dummyMode)
		}

		server := dummy.Start(dummy.ServerConfig{
			Port:     dummyPort,
			Mode:     mode,
			Username: dummyUser,
			Password: dummyPassword,
			Latency:  dummyLatency,
		})

		<-cmd.Context().Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return dummy.Shutdown(ctx, server)
	},
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Check credentials: exchange a token and resolve the UI server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		client := erp.NewClientFromConfig(cfg, logger)
		sess, err := client.Authenticate(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Server:    %s\n", cfg.BaseURL)
		fmt.Fprintf(out, "Token:     %s\n", erp.Truncate(sess.Token, 8)+"...")
		if sess.ExpiresIn > 0 {
			fmt.Fprintf(out, "Expires:   %s\n", sess.IssuedAt.Add(sess.ExpiresIn).Local().Format(time.DateTime))
		}
		fmt.Fprintf(out, "UI server: %s\n", sess.UIServerURL)
		return nil
	},
}

func init() {
	f := dummyCmd.Flags()
	f.IntVarP(&dummyPort, "port", "p", 8080, "port to listen on")
	f.StringVarP(&dummyMode, "mode", "m", string(dummy.ModeHealthy), "healthy, contaminated, flaky or reject")
	f.DurationVar(&dummyLatency, "latency", 0, "delay added to every transaction")
	f.StringVar(&dummyUser, "user", "", "required username (empty accepts any)")
	f.StringVar(&dummyPassword, "password", "", "required password")
}
