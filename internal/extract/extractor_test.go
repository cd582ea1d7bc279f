package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dgallion1/factgest/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndex struct {
	metas    []index.Metadata
	hits     []index.Hit
	queryErr error

	gotQuery  string
	gotN      int
	gotFilter index.Filter
}

func (f *fakeIndex) Query(_ context.Context, text string, n int, filter index.Filter) ([]index.Hit, error) {
	f.gotQuery, f.gotN, f.gotFilter = text, n, filter
	return f.hits, f.queryErr
}

func (f *fakeIndex) ListMetadata(context.Context) ([]index.Metadata, error) {
	return f.metas, nil
}

// fakeGenerator answers by looking for a marker in the user prompt.
type fakeGenerator struct {
	mu      sync.Mutex
	replies map[string]map[string]any
	fail    map[string]bool
	calls   int
	systems []string
	retries []int
}

func (g *fakeGenerator) GenerateStructured(_ context.Context, system, user string, maxRetries int, _ float64) (map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.systems = append(g.systems, system)
	g.retries = append(g.retries, maxRetries)
	for marker := range g.fail {
		if strings.Contains(user, marker) {
			return nil, errors.New("generation exhausted")
		}
	}
	for marker, obj := range g.replies {
		if strings.Contains(user, marker) {
			return obj, nil
		}
	}
	return map[string]any{"facts": []any{}}, nil
}

type recordingProgress struct {
	mu        sync.Mutex
	total     int
	processed int
	valid     int
	stored    int
	errs      []string
}

func (p *recordingProgress) SetTotalChunks(n int) { p.mu.Lock(); p.total = n; p.mu.Unlock() }
func (p *recordingProgress) IncrChunksProcessed() { p.mu.Lock(); p.processed++; p.mu.Unlock() }
func (p *recordingProgress) AddFacts(v, s int) {
	p.mu.Lock()
	p.valid += v
	p.stored += s
	p.mu.Unlock()
}
func (p *recordingProgress) AddError(msg string) { p.mu.Lock(); p.errs = append(p.errs, msg); p.mu.Unlock() }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hit(id, text string, page int, section string) index.Hit {
	return index.Hit{ID: id, Text: text, Meta: index.Metadata{FileName: "acme.pdf", Page: page, SectionPath: section}}
}

func facts(items ...map[string]any) map[string]any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return map[string]any{"facts": out}
}

func TestExtractFacts_NoHitsSkipsGeneration(t *testing.T) {
	idx := &fakeIndex{}
	gen := &fakeGenerator{}
	ex := New(idx, gen, "", DefaultConfig(), quietLogger())

	doc, err := ex.ExtractFacts(context.Background(), "scope 1", "Acme", 2024)

	require.NoError(t, err)
	assert.Equal(t, 0, gen.calls)
	assert.Equal(t, RawNoHits, doc.Raw)
	assert.NotNil(t, doc.Facts)
	assert.Empty(t, doc.Facts)
	assert.Equal(t, "Acme", doc.Company)
	assert.Equal(t, 2024, doc.Year)
	assert.Nil(t, idx.gotFilter)
}

func TestExtractFacts_FiltersFirstDocument(t *testing.T) {
	idx := &fakeIndex{
		metas: []index.Metadata{{FileName: "zeta.pdf"}, {FileName: "beta.pdf"}, {FileName: "zeta.pdf"}},
	}
	ex := New(idx, &fakeGenerator{}, "", DefaultConfig(), quietLogger())

	_, err := ex.ExtractFacts(context.Background(), "targets", "Acme", 2024)

	require.NoError(t, err)
	assert.Equal(t, index.Filter{"file_name": "beta.pdf"}, idx.gotFilter)
	assert.Equal(t, 40, idx.gotN)
	assert.Equal(t, "targets", idx.gotQuery)
}

func TestExtractFacts_MergesAcrossChunks(t *testing.T) {
	idx := &fakeIndex{
		metas: []index.Metadata{{FileName: "acme.pdf"}},
		hits: []index.Hit{
			hit("c1", "CHUNK-ONE Scope 1 emissions were 1,200 tCO2e.", 3, "4 Climate"),
			hit("c2", "CHUNK-TWO Scope 1 emissions were 1,200 tCO2e.", 3, "4 Climate"),
			hit("c3", "CHUNK-THREE nothing here", 5, ""),
		},
	}
	gen := &fakeGenerator{replies: map[string]map[string]any{
		"CHUNK-ONE": {"facts": []any{
			map[string]any{"text": "Scope 1 emissions were 1,200 tCO2e.", "confidence": "medium"},
			"not an object",
		}},
		"CHUNK-TWO": facts(
			map[string]any{"text": "Scope 1 emissions were 1,200 tCO2e.", "confidence": "high", "unit": "tCO2e"},
		),
		"CHUNK-THREE": {"facts": "nope"},
	}}
	ex := New(idx, gen, "custom system", DefaultConfig(), quietLogger())

	doc, err := ex.ExtractFacts(context.Background(), "q", "Acme", 2024)

	require.NoError(t, err)
	assert.Equal(t, 3, gen.calls)
	assert.Equal(t, []string{"custom system", "custom system", "custom system"}, gen.systems)
	assert.Equal(t, []int{3, 3, 3}, gen.retries)
	assert.Empty(t, doc.Raw)
	require.Len(t, doc.Facts, 1)
	f := doc.Facts[0]
	assert.Equal(t, ConfidenceHigh, f.Confidence)
	assert.Equal(t, "tCO2e", f.Unit)
	assert.Equal(t, 3, f.Page)
	assert.Equal(t, "acme.pdf", f.FileName)
	assert.Equal(t, "4 Climate", f.SectionPath)
	assert.Equal(t, FactID(3, "Scope 1 emissions were 1,200 tCO2e."), f.ID)
}

func TestExtractFacts_ChunkFailureIsSkipped(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{
		hit("c1", "BROKEN", 1, ""),
		hit("c2", "GOOD", 2, ""),
	}}
	gen := &fakeGenerator{
		fail:    map[string]bool{"BROKEN": true},
		replies: map[string]map[string]any{"GOOD": facts(map[string]any{"text": "Target: -42% by 2030."})},
	}
	p := &recordingProgress{}
	ex := New(idx, gen, "", DefaultConfig(), quietLogger())

	doc, err := ex.Run(context.Background(), Request{Query: "q", Company: "Acme", Year: 2024}, p)

	require.NoError(t, err)
	require.Len(t, doc.Facts, 1)
	assert.Equal(t, 2, doc.Facts[0].Page)
	assert.Equal(t, ConfidenceLow, doc.Facts[0].Confidence)
	assert.Equal(t, 2, p.total)
	assert.Equal(t, 2, p.processed)
	assert.Equal(t, 1, p.valid)
	assert.Equal(t, 1, p.stored)
	require.Len(t, p.errs, 1)
	assert.Contains(t, p.errs[0], "page 1")
}

func TestExtractFacts_FallbackMiner(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{
		hit("c1", "Our Scope 1 emissions were 1,200 tCO2e in 2023. We value our people.", 4, "4 Climate"),
	}}
	ex := New(idx, &fakeGenerator{}, "", DefaultConfig(), quietLogger())

	doc, err := ex.ExtractFacts(context.Background(), "q", "Acme", 2024)

	require.NoError(t, err)
	assert.Equal(t, RawFallback, doc.Raw)
	require.Len(t, doc.Facts, 1)
	assert.Equal(t, "Our Scope 1 emissions were 1,200 tCO2e in 2023.", doc.Facts[0].Text)
	assert.Equal(t, ConfidenceMedium, doc.Facts[0].Confidence)
	assert.Equal(t, "4 Climate", doc.Facts[0].SectionPath)
}

func TestExtractFacts_FallbackDisabled(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{hit("c1", "Scope 1 was 5 tCO2e.", 1, "")}}
	cfg := DefaultConfig()
	cfg.Fallback = false
	ex := New(idx, &fakeGenerator{}, "", cfg, quietLogger())

	doc, err := ex.ExtractFacts(context.Background(), "q", "Acme", 2024)

	require.NoError(t, err)
	assert.Empty(t, doc.Raw)
	assert.Empty(t, doc.Facts)
}

func TestExtractFacts_RetrievalErrorPropagates(t *testing.T) {
	idx := &fakeIndex{queryErr: errors.New("index offline")}
	ex := New(idx, &fakeGenerator{}, "", DefaultConfig(), quietLogger())

	_, err := ex.ExtractFacts(context.Background(), "q", "Acme", 2024)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "index offline")
}

func TestExtractFacts_ParallelMatchesSequential(t *testing.T) {
	var hits []index.Hit
	replies := map[string]map[string]any{}
	for i := range 12 {
		marker := "MARK" + string(rune('A'+i)) + "!"
		hits = append(hits, hit(marker, marker, i%4+1, ""))
		replies[marker] = facts(
			map[string]any{"text": "shared fact", "confidence": []string{"low", "medium", "high"}[i%3]},
			map[string]any{"text": "fact " + marker},
		)
	}
	run := func(workers int) *Document {
		cfg := DefaultConfig()
		cfg.Workers = workers
		ex := New(&fakeIndex{hits: hits}, &fakeGenerator{replies: replies}, "", cfg, quietLogger())
		doc, err := ex.ExtractFacts(context.Background(), "q", "Acme", 2024)
		require.NoError(t, err)
		return doc
	}
	assert.Equal(t, run(1), run(4))
}

func TestExtractFacts_RerunSameIDs(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{hit("c1", "SNIPPET-X", 8, "")}}
	gen := &fakeGenerator{replies: map[string]map[string]any{"SNIPPET-X": facts(map[string]any{"text": "Intensity fell 12%."})}}
	ex := New(idx, gen, "", DefaultConfig(), quietLogger())

	a, err := ex.ExtractFacts(context.Background(), "q", "Acme", 2024)
	require.NoError(t, err)
	b, err := ex.ExtractFacts(context.Background(), "q", "Acme", 2024)
	require.NoError(t, err)
	assert.Equal(t, a.Facts[0].ID, b.Facts[0].ID)
}

func TestExtractFacts_CanceledContext(t *testing.T) {
	idx := &fakeIndex{hits: []index.Hit{hit("c1", "X", 1, "")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := New(idx, &fakeGenerator{}, "", DefaultConfig(), quietLogger())

	_, err := ex.ExtractFacts(ctx, "q", "Acme", 2024)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteAndReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "facts.json")
	doc := &Document{Company: "Acme", Year: 2024, Raw: RawNoHits}

	require.NoError(t, WriteDocument(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"facts\": []")
	assert.Contains(t, string(data), `"raw": "no_hits"`)

	back, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "Acme", back.Company)
	assert.Equal(t, 2024, back.Year)
	assert.Empty(t, back.Facts)
	assert.Equal(t, RawNoHits, back.Raw)
}

func TestWriteDocument_OmitsEmptyRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facts.json")
	doc := &Document{Company: "Acme", Year: 2024, Facts: []Fact{{ID: "f", Text: "t", Page: 1, Confidence: ConfidenceLow}}}
	require.NoError(t, WriteDocument(path, doc))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"raw"`)

	back, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, doc.Facts, back.Facts)
}
