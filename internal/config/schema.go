package config

import "time"

// Config is built once at process start and passed down explicitly.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Index     IndexConfig     `mapstructure:"index" yaml:"index"`
	Ingest    IngestConfig    `mapstructure:"ingest" yaml:"ingest"`
	Chunking  ChunkingConfig  `mapstructure:"chunking" yaml:"chunking"`
	Extract   ExtractConfig   `mapstructure:"extract" yaml:"extract"`
	Verify    VerifyConfig    `mapstructure:"verify" yaml:"verify"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Port           string        `mapstructure:"port" yaml:"port"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
	WorkerCount    int           `mapstructure:"worker_count" yaml:"worker_count"`
	MaxQueueSize   int           `mapstructure:"max_queue_size" yaml:"max_queue_size"`
	JobTTL         time.Duration `mapstructure:"job_ttl" yaml:"job_ttl"`
}

// LLMConfig selects the completion transport.
type LLMConfig struct {
	Provider  string        `mapstructure:"provider" yaml:"provider"` // "ollama" or "openai"
	Host      string        `mapstructure:"host" yaml:"host"`
	Model     string        `mapstructure:"model" yaml:"model"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR}
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxTokens int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Backoff   time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

// EmbeddingConfig selects the embedder used by the index.
type EmbeddingConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider"` // "ollama", "genai" or "none"
	Host     string `mapstructure:"host" yaml:"host"`
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
}

type IndexConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type IngestConfig struct {
	ReportsDir  string `mapstructure:"reports_dir" yaml:"reports_dir"`
	PDFFallback bool   `mapstructure:"pdf_fallback" yaml:"pdf_fallback"`
}

type ChunkingConfig struct {
	ChunkSize    int `mapstructure:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" yaml:"chunk_overlap"`
}

type ExtractConfig struct {
	Query        string  `mapstructure:"query" yaml:"query"`
	Company      string  `mapstructure:"company" yaml:"company"`
	Year         int     `mapstructure:"year" yaml:"year"`
	TopK         int     `mapstructure:"top_k" yaml:"top_k"`
	MaxRetries   int     `mapstructure:"max_retries" yaml:"max_retries"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
	SnippetChars int     `mapstructure:"snippet_chars" yaml:"snippet_chars"`
	PromptPath   string  `mapstructure:"prompt_path" yaml:"prompt_path"`
	Workers      int     `mapstructure:"workers" yaml:"workers"`
	Fallback     bool    `mapstructure:"fallback" yaml:"fallback"`
	StrictSchema bool    `mapstructure:"strict_schema" yaml:"strict_schema"`
	Out          string  `mapstructure:"out" yaml:"out"`
}

type VerifyConfig struct {
	TopK       int    `mapstructure:"top_k" yaml:"top_k"`
	QuoteChars int    `mapstructure:"quote_chars" yaml:"quote_chars"`
	MaxDepth   int    `mapstructure:"max_depth" yaml:"max_depth"`
	RulesPath  string `mapstructure:"rules_path" yaml:"rules_path"`
	Out        string `mapstructure:"out" yaml:"out"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}
