package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/factgest/internal/pipeline"
)

var runFlags struct {
	reports    string
	noReingest bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest the reports, then extract facts",
	Long: `Run the whole pipeline: ingest every report under the reports directory
and extract the facts document. Use --no-reingest to reuse the existing
index.

Examples:
  factgest run --company "IPCC AR6 WGIII" --year 2022
  factgest run --no-reingest --query "sector shares of emissions"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyExtractFlags(cmd)
		if cmd.Flags().Changed("reports") {
			cfg.Ingest.ReportsDir = runFlags.reports
		}
		log := newLogger(cfg.Log, os.Stderr, false)
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.runner.Run(cmd.Context(), pipeline.RunOptions{
			ReportsDir: cfg.Ingest.ReportsDir,
			Reingest:   !runFlags.noReingest,
			Request:    extractRequest(),
			Out:        cfg.Extract.Out,
		})
		if err != nil {
			return err
		}
		log.Info("pipeline done", "facts", len(res.Document.Facts))
		return nil
	},
}

func init() {
	addExtractFlags(runCmd)
	runCmd.Flags().StringVar(&runFlags.reports, "reports", "", "directory with reports (default from config)")
	runCmd.Flags().BoolVar(&runFlags.noReingest, "no-reingest", false, "skip ingest and reuse the existing index")
	rootCmd.AddCommand(runCmd)
}
