package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/factgest/internal/extract"
	"github.com/dgallion1/factgest/internal/verify"
)

var verifyFlags struct {
	facts string
	out   string
	rules string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify every fact of a facts document against the index",
	Long: `Read a facts document, build a verification tree for each fact and write
the results as JSON. Facts are checked against axiom and citation rules,
then against retrieved evidence.

Examples:
  factgest verify
  factgest verify --facts data/cache/facts.json --out verification.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		factsPath := cfg.Extract.Out
		if f.Changed("facts") {
			factsPath = verifyFlags.facts
		}
		if f.Changed("out") {
			cfg.Verify.Out = verifyFlags.out
		}
		if f.Changed("rules") {
			cfg.Verify.RulesPath = verifyFlags.rules
		}

		log := newLogger(cfg.Log, os.Stderr, false)
		doc, err := extract.ReadDocument(factsPath)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.runner.Verify(cmd.Context(), doc.Facts)
		if err != nil {
			return fmt.Errorf("verify facts: %w", err)
		}
		if err := verify.WriteEntries(cfg.Verify.Out, entries); err != nil {
			return err
		}
		summary := verify.Summary(entries)
		log.Info("wrote verification", "path", cfg.Verify.Out, "facts", len(entries), "summary", summary)
		return printJSON(cmd.OutOrStdout(), summary)
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFlags.facts, "facts", "", "facts document to verify (default: extract.out)")
	verifyCmd.Flags().StringVar(&verifyFlags.out, "out", "", "output path for the verification document")
	verifyCmd.Flags().StringVar(&verifyFlags.rules, "rules", "", "YAML file with extra axioms and citation phrases")
	rootCmd.AddCommand(verifyCmd)
}
