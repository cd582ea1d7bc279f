package main

import (
	"os"

	"github.com/spf13/cobra"
)

var ingestReports string

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse, chunk and index every report in a directory",
	Long: `Walk the reports directory, split each supported file (pdf, docx, html,
md, csv, txt) into pages and chunks, embed them and upsert them into the
index. Re-ingesting a file replaces its chunks.

Examples:
  factgest ingest
  factgest ingest --reports ./reports/2024`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("reports") {
			cfg.Ingest.ReportsDir = ingestReports
		}
		log := newLogger(cfg.Log, os.Stderr, false)
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.runner.Ingest(cmd.Context(), cfg.Ingest.ReportsDir)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), st)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestReports, "reports", "", "directory with reports (default from config)")
	rootCmd.AddCommand(ingestCmd)
}
