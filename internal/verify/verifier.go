package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/factgest/internal/extract"
	"github.com/dgallion1/factgest/internal/index"
)

// Config controls one Verifier.
type Config struct {
	TopK       int
	QuoteChars int
	MaxDepth   int
}

func DefaultConfig() Config {
	return Config{TopK: 5, QuoteChars: 1200, MaxDepth: 32}
}

// Verifier runs the credibility state machine against an index.
type Verifier struct {
	index index.Index
	rules Rules
	cfg   Config
	log   *slog.Logger
}

func New(idx index.Index, rules Rules, cfg Config, log *slog.Logger) *Verifier {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.QuoteChars <= 0 {
		cfg.QuoteChars = def.QuoteChars
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	return &Verifier{index: idx, rules: rules, cfg: cfg, log: log}
}

// Visited is the set of statements already classified in one run.
type Visited map[string]struct{}

// Verify classifies statement in a fresh run.
func (v *Verifier) Verify(ctx context.Context, statement string) *Result {
	return v.VerifyWith(ctx, statement, make(Visited))
}

// VerifyWith classifies statement, sharing visited with the caller. Any
// statement already in visited is a circular_reference. visited is
// modified; nil starts a fresh run.
func (v *Verifier) VerifyWith(ctx context.Context, statement string, visited Visited) *Result {
	if visited == nil {
		visited = make(Visited)
	}
	return v.verify(ctx, statement, visited, 0)
}

func (v *Verifier) verify(ctx context.Context, statement string, visited Visited, depth int) *Result {
	if _, seen := visited[statement]; seen {
		return &Result{Credibility: CircularReference}
	}
	visited[statement] = struct{}{}

	if v.rules.IsAxiom(statement) {
		return &Result{Credibility: Axiom, Statement: statement}
	}
	if depth >= v.cfg.MaxDepth {
		v.log.Warn("verification depth limit reached", "depth", depth)
		return &Result{Credibility: Unsupported}
	}

	if v.rules.HasSource(statement) {
		quotes := v.sources(ctx, statement)
		children := make([]*Result, 0, len(quotes))
		for _, q := range quotes {
			children = append(children, v.verify(ctx, q, visited, depth+1))
		}
		return &Result{Credibility: VerifiedFromSource, Sources: children}
	}

	if quotes := v.sources(ctx, statement); len(quotes) > 0 {
		child := v.verify(ctx, quotes[0], visited, depth+1)
		if child.Credibility.promotes() {
			return &Result{Credibility: CrossVerified, Child: child}
		}
	}
	return &Result{Credibility: Unsupported}
}

// sources retrieves supporting quotes. Retrieval errors count as no hits;
// a done context retrieves nothing.
func (v *Verifier) sources(ctx context.Context, statement string) []string {
	if ctx.Err() != nil {
		return nil
	}
	hits, err := v.index.Query(ctx, statement, v.cfg.TopK, nil)
	if err != nil {
		v.log.Warn("evidence retrieval failed", "error", err)
		return nil
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = extract.Snippet(h.Text, v.cfg.QuoteChars)
	}
	return out
}

// Entry pairs a statement with its verification tree.
type Entry struct {
	Statement    string  `json:"statement"`
	Verification *Result `json:"verification"`
}

// StatementOf picks what to verify for a fact: its claim, metric or text,
// falling back to its JSON encoding.
func StatementOf(f extract.Fact) string {
	switch {
	case f.Claim != "":
		return f.Claim
	case f.Metric != "":
		return f.Metric
	case f.Text != "":
		return f.Text
	}
	data, err := json.Marshal(f)
	if err != nil {
		return f.ID
	}
	return string(data)
}

// VerifyFacts verifies each fact's statement in its own run.
func (v *Verifier) VerifyFacts(ctx context.Context, facts []extract.Fact) ([]Entry, error) {
	statements := make([]string, len(facts))
	for i, f := range facts {
		statements[i] = StatementOf(f)
	}
	return v.VerifyStatements(ctx, statements)
}

// VerifyStatements verifies each statement in its own run. It stops when ctx
// is done, returning the entries finished so far and the context error; the
// statement in flight at that point is dropped since its verdict is unreliable.
func (v *Verifier) VerifyStatements(ctx context.Context, statements []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(statements))
	for i, s := range statements {
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		r := v.Verify(ctx, s)
		if err := ctx.Err(); err != nil {
			return entries, err
		}
		v.log.Debug("verified statement", "index", i, "credibility", r.Credibility, "nodes", r.Size())
		entries = append(entries, Entry{Statement: s, Verification: r})
	}
	return entries, nil
}

// WriteEntries writes the verification document to path as indented JSON.
func WriteEntries(path string, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal verification document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write verification document: %w", err)
	}
	return nil
}

// Summary counts top-level verdicts.
func Summary(entries []Entry) map[Credibility]int {
	out := make(map[Credibility]int)
	for _, e := range entries {
		out[e.Verification.Credibility]++
	}
	return out
}
