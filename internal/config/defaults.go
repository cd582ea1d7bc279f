package config

import "time"

// DefaultQuery is the retrieval query used when none is given.
const DefaultQuery = "Extract Scope 1–3 emissions, units, base year, method, assurance level, 2030 targets, carbon intensity, and ESRS E1-4 target details."

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8090",
			MaxUploadBytes: 50 << 20,
			WorkerCount:    2,
			MaxQueueSize:   100,
			JobTTL:         time.Hour,
		},
		LLM: LLMConfig{
			Provider:  "ollama",
			Host:      "http://localhost:11434",
			Model:     "mistral:7b-instruct",
			Timeout:   180 * time.Second,
			MaxTokens: 4096,
			Backoff:   1200 * time.Millisecond,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Host:     "http://localhost:11434",
			Model:    "nomic-embed-text",
		},
		Index: IndexConfig{
			Path: "./data/vectors/factgest.db",
		},
		Ingest: IngestConfig{
			ReportsDir:  "./reports",
			PDFFallback: true,
		},
		Chunking: ChunkingConfig{
			ChunkSize:    1100,
			ChunkOverlap: 150,
		},
		Extract: ExtractConfig{
			Query:        DefaultQuery,
			Company:      "Unknown Co.",
			Year:         2024,
			TopK:         40,
			MaxRetries:   3,
			Temperature:  0.1,
			SnippetChars: 1800,
			Workers:      1,
			Fallback:     true,
			Out:          "data/cache/facts.json",
		},
		Verify: VerifyConfig{
			TopK:       5,
			QuoteChars: 1200,
			MaxDepth:   32,
			Out:        "data/cache/verification.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// setDefaults registers every leaf key so environment overrides apply to
// nested fields.
func setDefaults(v interface{ SetDefault(string, any) }) {
	d := DefaultConfig()
	defaults := map[string]any{
		"server.port":             d.Server.Port,
		"server.max_upload_bytes": d.Server.MaxUploadBytes,
		"server.worker_count":     d.Server.WorkerCount,
		"server.max_queue_size":   d.Server.MaxQueueSize,
		"server.job_ttl":          d.Server.JobTTL,

		"llm.provider":   d.LLM.Provider,
		"llm.host":       d.LLM.Host,
		"llm.model":      d.LLM.Model,
		"llm.api_key":    d.LLM.APIKey,
		"llm.base_url":   d.LLM.BaseURL,
		"llm.timeout":    d.LLM.Timeout,
		"llm.max_tokens": d.LLM.MaxTokens,
		"llm.backoff":    d.LLM.Backoff,

		"embedding.provider": d.Embedding.Provider,
		"embedding.host":     d.Embedding.Host,
		"embedding.model":    d.Embedding.Model,
		"embedding.api_key":  d.Embedding.APIKey,

		"index.path": d.Index.Path,

		"ingest.reports_dir":  d.Ingest.ReportsDir,
		"ingest.pdf_fallback": d.Ingest.PDFFallback,

		"chunking.chunk_size":    d.Chunking.ChunkSize,
		"chunking.chunk_overlap": d.Chunking.ChunkOverlap,

		"extract.query":         d.Extract.Query,
		"extract.company":       d.Extract.Company,
		"extract.year":          d.Extract.Year,
		"extract.top_k":         d.Extract.TopK,
		"extract.max_retries":   d.Extract.MaxRetries,
		"extract.temperature":   d.Extract.Temperature,
		"extract.snippet_chars": d.Extract.SnippetChars,
		"extract.prompt_path":   d.Extract.PromptPath,
		"extract.workers":       d.Extract.Workers,
		"extract.fallback":      d.Extract.Fallback,
		"extract.strict_schema": d.Extract.StrictSchema,
		"extract.out":           d.Extract.Out,

		"verify.top_k":       d.Verify.TopK,
		"verify.quote_chars": d.Verify.QuoteChars,
		"verify.max_depth":   d.Verify.MaxDepth,
		"verify.rules_path":  d.Verify.RulesPath,
		"verify.out":         d.Verify.Out,

		"log.level":  d.Log.Level,
		"log.format": d.Log.Format,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}
