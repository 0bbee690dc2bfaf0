package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Verify the mailbox connection and the summarizer endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		username, err := a.TestMailbox(cmd.Context())
		if err != nil {
			fmt.Printf("mailbox:    FAIL (%v)\n", err)
		} else {
			fmt.Printf("mailbox:    ok (%s)\n", username)
		}

		if sumErr := a.TestSummarizer(cmd.Context()); sumErr != nil {
			fmt.Printf("summarizer: FAIL (%v)\n", sumErr)
			if err == nil {
				err = sumErr
			}
		} else {
			fmt.Println("summarizer: ok")
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(selftestCmd)
}
