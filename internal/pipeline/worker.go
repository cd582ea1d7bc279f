package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/factgest/internal/verify"
)

// VerifyResult is the output of a verify job.
type VerifyResult struct {
	Entries []verify.Entry             `json:"entries"`
	Summary map[verify.Credibility]int `json:"summary"`
}

// Worker processes jobs of every kind.
type Worker struct {
	runner *Runner
	jobs   *JobStore
	log    *slog.Logger
}

func NewWorker(runner *Runner, jobs *JobStore, log *slog.Logger) *Worker {
	return &Worker{runner: runner, jobs: jobs, log: log}
}

// Process runs a job to a terminal status.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "kind", job.Kind)
	switch job.Kind {
	case KindIngest:
		w.ingest(ctx, job, log)
	case KindExtract:
		w.extract(ctx, job, log)
	case KindVerify:
		w.verify(ctx, job, log)
	default:
		job.AddError(fmt.Sprintf("unknown job kind %q", job.Kind))
		job.SetStatus(StatusFailed, "dispatch")
	}
}

func (w *Worker) ingest(ctx context.Context, job *Job, log *slog.Logger) {
	log = log.With("filename", job.Filename)

	if w.jobs != nil {
		if prev := w.jobs.FindByHash(job.ContentHash, job.ID); prev != nil {
			log.Info("duplicate upload, skipping", "existing_job_id", prev.ID)
			job.SetResult(map[string]string{"existing_job_id": prev.ID})
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	job.SetStatus(StatusParsing, "parsing")
	if w.runner == nil || w.runner.Ingester == nil {
		job.AddError("ingestion is not configured")
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	st, err := w.runner.Ingester.IngestFile(ctx, job.Filename, bytes.NewReader(job.FileData()), "upload:"+job.Filename)
	if err != nil {
		log.Error("store failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "storing")
		return
	}
	job.SetTotalChunks(st.Chunks)
	job.SetResult(st)

	switch {
	case len(st.Failed) > 0:
		job.AddError(fmt.Sprintf("could not parse %s", job.Filename))
		job.SetStatus(StatusFailed, "parsing")
	case st.Chunks == 0:
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "chunking")
	default:
		for range st.Chunks {
			job.IncrChunksProcessed()
		}
		log.Info("ingest job complete", "pages", st.Pages, "chunks", st.Chunks)
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) extract(ctx context.Context, job *Job, log *slog.Logger) {
	job.SetStatus(StatusExtracting, "extracting")
	doc, err := w.runner.Extract(ctx, job.request, job)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	job.SetResult(doc)

	if len(job.Snapshot().Progress.Errors) > 0 {
		job.SetStatus(StatusPartial, "done")
		return
	}
	log.Info("extract job complete", "facts", len(doc.Facts))
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) verify(ctx context.Context, job *Job, log *slog.Logger) {
	job.SetStatus(StatusVerifying, "verifying")
	job.SetTotalChunks(len(job.statements))
	entries, err := w.runner.VerifyStatements(ctx, job.statements)
	for range entries {
		job.IncrChunksProcessed()
	}
	if err != nil {
		log.Warn("verification interrupted", "verified", len(entries), "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "verifying")
		return
	}
	job.SetResult(VerifyResult{Entries: entries, Summary: verify.Summary(entries)})
	log.Info("verify job complete", "statements", len(entries))
	job.SetStatus(StatusCompleted, "done")
}
