package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run a single poll cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		report, err := a.PollOnce(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("fetched %d, admitted %d", report.Fetched, report.Admitted)
		if report.DroppedCutoff > 0 {
			fmt.Printf(", %d before cutoff", report.DroppedCutoff)
		}
		if report.DroppedDedup > 0 {
			fmt.Printf(", %d already seen", report.DroppedDedup)
		}
		if report.DroppedLabel > 0 {
			fmt.Printf(", %d dropped by label", report.DroppedLabel)
		}
		if report.DroppedRetry > 0 {
			fmt.Printf(", %d dropped after retries", report.DroppedRetry)
		}
		if report.Held > 0 {
			fmt.Printf(", %d held for retry", report.Held)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pollCmd)
}
