package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/factgest/internal/extract"
)

var extractFlags struct {
	company string
	year    int
	query   string
	prompt  string
	out     string
	workers int
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract structured facts from the indexed reports",
	Long: `Retrieve the chunks most relevant to the query from the first indexed
document, ask the model for facts one chunk at a time and write the merged
facts document as JSON.

Examples:
  factgest extract --company "ACME" --year 2023
  factgest extract --query "Scope 3 categories" --out facts.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		applyExtractFlags(cmd)
		log := newLogger(cfg.Log, os.Stderr, false)
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		doc, err := a.runner.Extract(cmd.Context(), extractRequest(), nil)
		if err != nil {
			return err
		}
		if err := extract.WriteDocument(cfg.Extract.Out, doc); err != nil {
			return err
		}
		log.Info("wrote facts", "path", cfg.Extract.Out, "facts", len(doc.Facts))
		return nil
	},
}

func addExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&extractFlags.company, "company", "", "company or report name")
	f.IntVar(&extractFlags.year, "year", 0, "reporting year")
	f.StringVar(&extractFlags.query, "query", "", "retrieval query")
	f.StringVar(&extractFlags.prompt, "prompt", "", "system prompt file")
	f.StringVar(&extractFlags.out, "out", "", "output path for the facts document")
	f.IntVar(&extractFlags.workers, "workers", 0, "chunks extracted in parallel")
}

func applyExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("company") {
		cfg.Extract.Company = extractFlags.company
	}
	if f.Changed("year") {
		cfg.Extract.Year = extractFlags.year
	}
	if f.Changed("query") {
		cfg.Extract.Query = extractFlags.query
	}
	if f.Changed("prompt") {
		cfg.Extract.PromptPath = extractFlags.prompt
	}
	if f.Changed("out") {
		cfg.Extract.Out = extractFlags.out
	}
	if f.Changed("workers") && extractFlags.workers > 0 {
		cfg.Extract.Workers = extractFlags.workers
	}
}

func extractRequest() extract.Request {
	return extract.Request{Query: cfg.Extract.Query, Company: cfg.Extract.Company, Year: cfg.Extract.Year}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	addExtractFlags(extractCmd)
	rootCmd.AddCommand(extractCmd)
}
