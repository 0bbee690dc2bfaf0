// Package cmd holds the CLI surface. Every command builds the
// application from the shared config flag and releases it on exit.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peytonb/inboxtasks/internal/app"
	"github.com/peytonb/inboxtasks/internal/logger"
	"github.com/peytonb/inboxtasks/internal/model"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "inboxtasks",
	Short: "Turn incoming email into a deduplicated task list",
	Long: `inboxtasks polls an IMAP mailbox, summarizes each new message into a
one-line task, and keeps the results in a local database. Messages are
admitted exactly once, even across restarts and record deletion.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default is ~/.config/inboxtasks/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")
}

// loadConfig resolves the config path and loads it.
func loadConfig() (*model.Config, error) {
	path := cfgFile
	if path == "" {
		path = model.DefaultConfigPath()
	}
	return model.LoadConfig(path)
}

// buildApp loads config, sets up logging, and assembles the
// application. The caller must Close the app and Sync the logger.
func buildApp() (*app.App, *zap.SugaredLogger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(logger.Config{
		Level:    logLevel(),
		FilePath: cfg.App.LogPath,
	})
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}

	return a, log, nil
}

func logLevel() string {
	if verbose {
		return "debug"
	}
	return "info"
}
