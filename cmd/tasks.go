package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/peytonb/inboxtasks/internal/model"
)

var tasksAll bool

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List task records, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		var records []model.TaskRecord
		if tasksAll {
			records, err = a.ListAll(cmd.Context())
		} else {
			records, err = a.ListActive(cmd.Context())
		}
		if err != nil {
			return err
		}

		counts, err := a.Counts(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "UID\tSTATUS\tRECEIVED\tFROM\tSUMMARY")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.SourceUID,
				rec.Status,
				rec.ReceivedAt.Format("2006-01-02 15:04"),
				rec.From,
				rec.Summary,
			)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("\n%d active, %d completed\n", counts.Active, counts.Completed)
		return nil
	},
}

func init() {
	tasksCmd.Flags().BoolVarP(&tasksAll, "all", "a", false,
		"include archived records")
	rootCmd.AddCommand(tasksCmd)
}
