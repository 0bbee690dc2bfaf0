package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the poller and retention sweeper until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		ctx, stop := signal.NotifyContext(
			cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
		)
		defer stop()

		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
