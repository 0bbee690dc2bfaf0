package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/peytonb/inboxtasks/internal/credential"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage secrets in the OS keyring",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <imap-password|api-key>",
	Short: "Store a secret, read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := credentialKey(args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "enter value for %s: ", args[0])
		reader := bufio.NewReader(os.Stdin)
		value, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading value: %w", err)
		}

		value = strings.TrimRight(value, "\r\n")
		if value == "" {
			return fmt.Errorf("empty value")
		}

		if err := credential.Set(key, value); err != nil {
			return err
		}
		fmt.Printf("stored %s\n", args[0])
		return nil
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <imap-password|api-key>",
	Short: "Remove a secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := credentialKey(args[0])
		if err != nil {
			return err
		}
		if err := credential.Delete(key); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func credentialKey(name string) (string, error) {
	switch name {
	case "imap-password":
		return credential.KeyIMAPPassword, nil
	case "api-key":
		return credential.KeySummarizerAPIKey, nil
	default:
		return "", fmt.Errorf("unknown credential %q (want imap-password or api-key)", name)
	}
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}
