package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/dgallion1/factgest/internal/config"
	"github.com/dgallion1/factgest/internal/extract"
	"github.com/dgallion1/factgest/internal/index"
	"github.com/dgallion1/factgest/internal/llm"
	"github.com/dgallion1/factgest/internal/pipeline"
	"github.com/dgallion1/factgest/internal/verify"
)

// app holds the components every command shares.
type app struct {
	log       *slog.Logger
	store     *index.SQLiteStore
	completer *llm.Instrumented
	runner    *pipeline.Runner
	closers   []func()
}

func newLogger(c config.LogConfig, w io.Writer, json bool) *slog.Logger {
	lvl, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	if json || c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newEmbedder(ctx context.Context, c config.EmbeddingConfig) (index.Embedder, error) {
	switch c.Provider {
	case "ollama":
		return index.NewOllamaEmbedder(c.Host, c.Model), nil
	case "genai":
		return index.NewGenAIEmbedder(ctx, c.APIKey, c.Model)
	case "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", c.Provider)
}

func newCompleter(c config.LLMConfig) (llm.Completer, string, func(), error) {
	switch c.Provider {
	case "ollama":
		client := llm.NewOllamaClient(c.Host, c.Model, c.Timeout)
		return client, "ollama:" + client.Model(), client.Close, nil
	case "openai":
		client := llm.NewOpenAIClient(c.APIKey, c.BaseURL, c.Model, c.Timeout)
		return client, "openai:" + client.Model(), func() {}, nil
	}
	return nil, "", nil, fmt.Errorf("unknown llm provider %q", c.Provider)
}

// newApp wires the index, the model and the pipeline from cfg.
func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log}

	emb, err := newEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}
	store, err := index.OpenSQLite(cfg.Index.Path, emb, log)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, func() { store.Close() })

	base, name, closeLLM, err := newCompleter(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeLLM)
	a.completer = llm.NewInstrumented(base, name, llm.NewStats(0))

	gen := llm.NewGenerator(a.completer, log).
		WithBackoff(cfg.LLM.Backoff).
		WithMaxTokens(cfg.LLM.MaxTokens)
	if cfg.Extract.StrictSchema {
		schema, err := llm.CompileSchema("facts.json", []byte(extract.FactsSchema))
		if err != nil {
			a.Close()
			return nil, err
		}
		gen = gen.WithSchema(schema)
	}

	system, err := extract.LoadSystemPrompt(cfg.Extract.PromptPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	rules, err := verify.LoadRules(cfg.Verify.RulesPath)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner = pipeline.NewRunner(
		pipeline.NewIngester(store, cfg.ChunkerConfig(), cfg.Ingest.PDFFallback, log),
		extract.New(store, gen, system, cfg.ExtractorConfig(), log),
		verify.New(store, rules, cfg.VerifierConfig(), log),
		log,
	)
	log.Debug("components ready", "index", cfg.Index.Path, "llm", name, "embedder", cfg.Embedding.Provider)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
