package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/factgest/internal/index"
)

// Generator produces one structured JSON object per prompt.
// llm.Generator implements it.
type Generator interface {
	GenerateStructured(ctx context.Context, system, user string, maxRetries int, temperature float64) (map[string]any, error)
}

// Progress receives per-chunk updates during a run. pipeline.Job implements it.
type Progress interface {
	SetTotalChunks(n int)
	IncrChunksProcessed()
	AddFacts(valid, stored int)
	AddError(msg string)
}

// Config controls one Extractor.
type Config struct {
	TopK         int
	MaxRetries   int
	Temperature  float64
	SnippetChars int
	Workers      int
	Fallback     bool
}

func DefaultConfig() Config {
	return Config{
		TopK:         40,
		MaxRetries:   3,
		Temperature:  0.1,
		SnippetChars: 1800,
		Workers:      1,
		Fallback:     true,
	}
}

// Extractor retrieves evidence for a query and asks the model for facts,
// one chunk at a time.
type Extractor struct {
	index  index.Index
	gen    Generator
	system string
	cfg    Config
	log    *slog.Logger
}

// New creates an Extractor. systemPrompt is usually the result of
// LoadSystemPrompt.
func New(idx index.Index, gen Generator, systemPrompt string, cfg Config, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = def.SnippetChars
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Extractor{index: idx, gen: gen, system: systemPrompt, cfg: cfg, log: log}
}

// Request names what to extract and for whom.
type Request struct {
	Query   string `json:"query"`
	Company string `json:"company"`
	Year    int    `json:"year"`
}

// ExtractFacts runs one extraction without progress reporting.
func (e *Extractor) ExtractFacts(ctx context.Context, query, company string, year int) (*Document, error) {
	return e.Run(ctx, Request{Query: query, Company: company, Year: year}, nil)
}

type chunkResult struct {
	facts []Fact
	err   error
}

// Run retrieves up to TopK chunks of the first known document and extracts
// facts from each. A chunk whose generation fails is logged and skipped.
// Errors are returned only for metadata listing, retrieval and context
// cancellation. p may be nil.
func (e *Extractor) Run(ctx context.Context, req Request, p Progress) (*Document, error) {
	doc := &Document{Company: req.Company, Year: req.Year, Facts: []Fact{}}

	filter, err := e.targetFilter(ctx)
	if err != nil {
		return nil, err
	}
	hits, err := e.index.Query(ctx, req.Query, e.cfg.TopK, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieve evidence: %w", err)
	}
	if len(hits) == 0 {
		e.log.Warn("no retrieval hits, saving empty facts", "query", req.Query)
		doc.Raw = RawNoHits
		return doc, nil
	}
	e.log.Info("retrieved evidence", "chunks", len(hits), "filter", filter)
	if p != nil {
		p.SetTotalChunks(len(hits))
	}

	results := make([]chunkResult, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, h := range hits {
		g.Go(func() error {
			facts, err := e.extractChunk(gctx, req, h)
			results[i] = chunkResult{facts: facts, err: err}
			if p != nil {
				p.IncrChunksProcessed()
				if err != nil {
					p.AddError(fmt.Sprintf("chunk %d (page %d): %v", i+1, h.Meta.Page, err))
				} else {
					p.AddFacts(len(facts), 0)
				}
			}
			if err != nil {
				e.log.Error("fact extraction failed", "chunk", i+1, "of", len(hits), "page", h.Meta.Page, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []Fact
	for _, r := range results {
		all = append(all, r.facts...)
	}
	doc.Facts = Merge(all)
	e.log.Info("extraction finished", "raw_facts", len(all), "merged_facts", len(doc.Facts))

	if len(doc.Facts) == 0 && e.cfg.Fallback {
		mined := MineFallback(hits)
		e.log.Warn("model produced no facts, using regex miner", "mined", len(mined))
		doc.Facts = Merge(mined)
		doc.Raw = RawFallback
	}
	if p != nil {
		p.AddFacts(0, len(doc.Facts))
	}
	return doc, nil
}

// targetFilter limits retrieval to the lexicographically first known file.
func (e *Extractor) targetFilter(ctx context.Context) (index.Filter, error) {
	metas, err := e.index.ListMetadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("list index metadata: %w", err)
	}
	names := make(map[string]struct{})
	for _, m := range metas {
		if m.FileName != "" {
			names[m.FileName] = struct{}{}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	return index.Filter{"file_name": sorted[0]}, nil
}

func (e *Extractor) extractChunk(ctx context.Context, req Request, h index.Hit) ([]Fact, error) {
	e.log.Debug("extracting from chunk", "id", h.ID, "page", h.Meta.Page)
	prompt := BuildChunkPrompt(req.Company, req.Year, h, e.cfg.SnippetChars)
	obj, err := e.gen.GenerateStructured(ctx, e.system, prompt, e.cfg.MaxRetries, e.cfg.Temperature)
	if err != nil {
		return nil, err
	}

	raw, ok := obj["facts"].([]any)
	if !ok {
		return nil, nil
	}
	loc := Location{Page: h.Meta.Page, FileName: h.Meta.FileName, SectionPath: h.Meta.SectionPath}
	facts := make([]Fact, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if f, ok := Normalize(m, loc); ok {
			facts = append(facts, f)
		}
	}
	return facts, nil
}
