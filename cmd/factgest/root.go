package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/factgest/internal/config"
)

var (
	cfgFile  string
	logLevel string

	// cfg is loaded before any subcommand runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "factgest",
	Short: "Extract and verify climate facts from corporate reports",
	Long: `factgest ingests sustainability reports into a local index, extracts
structured facts with an LLM and checks each fact against the indexed
evidence.

Configuration comes from factgest.yaml (./ or ~/.factgest/), FACTGEST_*
environment variables and command flags, in increasing precedence.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./factgest.yaml or ~/.factgest/factgest.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error",
	)
}
