package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var doneCmd = &cobra.Command{
	Use:   "done <uid>",
	Short: "Mark an active task as completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		if err := a.Complete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("completed %s\n", args[0])
		return nil
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <uid>",
	Short: "Archive a completed task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		if err := a.Archive(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("archived %s\n", args[0])
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <uid>",
	Short: "Delete a task record (its message will not be re-admitted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		if err := a.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Archive all completed tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		n, err := a.ClearCompleted(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("archived %d completed task(s)\n", n)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the retention pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := buildApp()
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			_ = log.Sync()
		}()

		n, err := a.SweepNow(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("archived %d task(s) past retention\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doneCmd, archiveCmd, rmCmd, clearCmd, sweepCmd)
}
