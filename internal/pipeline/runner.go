package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/factgest/internal/extract"
	"github.com/dgallion1/factgest/internal/verify"
)

// Runner ties ingestion, extraction and verification together for the CLI
// and the job workers.
type Runner struct {
	Ingester  *Ingester
	Extractor *extract.Extractor
	Verifier  *verify.Verifier
	log       *slog.Logger
}

func NewRunner(in *Ingester, ex *extract.Extractor, v *verify.Verifier, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{Ingester: in, Extractor: ex, Verifier: v, log: log}
}

// Ingest ingests every supported report under dir.
func (r *Runner) Ingest(ctx context.Context, dir string) (IngestStats, error) {
	if r.Ingester == nil {
		return IngestStats{}, fmt.Errorf("ingestion is not configured")
	}
	return r.Ingester.IngestDir(ctx, dir)
}

// Extract runs one extraction. p may be nil.
func (r *Runner) Extract(ctx context.Context, req extract.Request, p extract.Progress) (*extract.Document, error) {
	if r.Extractor == nil {
		return nil, fmt.Errorf("extraction is not configured")
	}
	return r.Extractor.Run(ctx, req, p)
}

// Verify verifies each fact independently.
func (r *Runner) Verify(ctx context.Context, facts []extract.Fact) ([]verify.Entry, error) {
	return r.Verifier.VerifyFacts(ctx, facts)
}

func (r *Runner) VerifyStatements(ctx context.Context, statements []string) ([]verify.Entry, error) {
	return r.Verifier.VerifyStatements(ctx, statements)
}

// RunOptions configures an end-to-end run.
type RunOptions struct {
	ReportsDir string
	Reingest   bool
	Request    extract.Request
	Out        string
}

// RunResult is what an end-to-end run produced.
type RunResult struct {
	Ingest   *IngestStats      `json:"ingest,omitempty"`
	Document *extract.Document `json:"document"`
}

// Run optionally ingests, then extracts and writes the facts document.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	res := &RunResult{}
	if opts.Reingest {
		r.log.Info("ingesting reports", "dir", opts.ReportsDir)
		st, err := r.Ingest(ctx, opts.ReportsDir)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}
		res.Ingest = &st
	} else {
		r.log.Info("skipping ingest, using existing index")
	}

	doc, err := r.Extract(ctx, opts.Request, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	res.Document = doc
	if opts.Out != "" {
		if err := extract.WriteDocument(opts.Out, doc); err != nil {
			return nil, err
		}
		r.log.Info("wrote facts", "path", opts.Out, "facts", len(doc.Facts))
	}
	return res, nil
}
