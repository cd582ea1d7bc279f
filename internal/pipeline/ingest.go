package pipeline

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/factgest/internal/chunker"
	"github.com/dgallion1/factgest/internal/index"
	"github.com/dgallion1/factgest/internal/parser"
)

// IngestStats summarizes an ingest run.
type IngestStats struct {
	Files      int      `json:"files"`
	Pages      int      `json:"pages"`
	EmptyPages int      `json:"empty_pages"`
	Chunks     int      `json:"chunks"`
	Failed     []string `json:"failed,omitempty"`
}

func (s *IngestStats) add(o IngestStats) {
	s.Files += o.Files
	s.Pages += o.Pages
	s.EmptyPages += o.EmptyPages
	s.Chunks += o.Chunks
	s.Failed = append(s.Failed, o.Failed...)
}

// Ingester parses report files, chunks their pages and upserts the chunks.
type Ingester struct {
	store       index.Writer
	chunkCfg    chunker.Config
	pdfFallback bool
	log         *slog.Logger
}

func NewIngester(store index.Writer, chunkCfg chunker.Config, pdfFallback bool, log *slog.Logger) *Ingester {
	if log == nil {
		log = slog.Default()
	}
	return &Ingester{store: store, chunkCfg: chunkCfg, pdfFallback: pdfFallback, log: log}
}

// IngestDir ingests every supported file under dir in lexical path order.
// A file that cannot be parsed is logged and recorded in Failed; index
// write failures abort the run.
func (in *Ingester) IngestDir(ctx context.Context, dir string) (IngestStats, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !parser.IsSupportedExtension(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return IngestStats{}, fmt.Errorf("walk %s: %w", dir, err)
	}

	var total IngestStats
	if len(paths) == 0 {
		in.log.Warn("no reports found", "dir", dir)
		return total, nil
	}
	in.log.Info("found reports", "dir", dir, "files", len(paths))

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		st, err := in.ingestPath(ctx, dir, path)
		if err != nil {
			return total, err
		}
		total.add(st)
	}
	in.log.Info("ingestion complete", "files", total.Files, "chunks", total.Chunks, "failed", len(total.Failed))
	return total, nil
}

// ingestPath names the file by its slash-separated path under dir so that
// same-named reports in different subdirectories stay distinct.
func (in *Ingester) ingestPath(ctx context.Context, dir, path string) (IngestStats, error) {
	name := filepath.Base(path)
	if rel, err := filepath.Rel(dir, path); err == nil {
		name = filepath.ToSlash(rel)
	}

	f, err := os.Open(path)
	if err != nil {
		in.log.Error("open report failed", "file", path, "error", err)
		return IngestStats{Failed: []string{name}}, nil
	}
	defer f.Close()

	uri, err := filepath.Abs(path)
	if err != nil {
		uri = path
	}
	return in.IngestFile(ctx, name, f, uri)
}

// IngestFile ingests one document. name selects the parser by extension and
// becomes the chunks' file_name.
func (in *Ingester) IngestFile(ctx context.Context, name string, r io.Reader, sourceURI string) (IngestStats, error) {
	log := in.log.With("file", name)
	failed := IngestStats{Failed: []string{name}}

	p, err := parser.ForFile(name)
	if err != nil {
		log.Error("unsupported format", "error", err)
		return failed, nil
	}
	if pdf, ok := p.(*parser.PDFParser); ok {
		pdf.FallbackPdftotext = in.pdfFallback
	}

	recs, err := p.Parse(r, name)
	if err != nil {
		log.Error("parse failed", "error", err)
		return failed, nil
	}

	st := IngestStats{Files: 1}
	kept := recs[:0]
	for _, rec := range recs {
		st.Pages++
		if strings.TrimSpace(rec.Text) == "" {
			log.Warn("skipping empty page", "page", rec.Page)
			st.EmptyPages++
			continue
		}
		rec.SourceURI = sourceURI
		kept = append(kept, rec)
	}

	chunks := chunker.ChunkPages(kept, in.chunkCfg)
	log.Debug("chunked report", "pages", len(kept), "chunks", len(chunks))
	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		return st, nil
	}

	n, err := in.store.Upsert(ctx, chunks)
	if err != nil {
		return st, fmt.Errorf("store chunks for %s: %w", name, err)
	}
	st.Chunks = n
	log.Info("ingested report", "pages", st.Pages, "chunks", n)
	return st, nil
}
