// Package config loads the process configuration from defaults, an optional
// YAML file and FACTGEST_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/dgallion1/factgest/internal/chunker"
	"github.com/dgallion1/factgest/internal/extract"
	"github.com/dgallion1/factgest/internal/verify"
)

// EnvPrefix prefixes every environment override, e.g. FACTGEST_LLM_HOST.
const EnvPrefix = "FACTGEST"

// Load builds a Config. cfgFile may be empty, in which case factgest.yaml is
// looked up in the working directory and $HOME/.factgest; a missing file is
// not an error. API keys are expanded with ResolveEnvVars.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("factgest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.factgest")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.LLM.APIKey = ResolveEnvVars(cfg.LLM.APIKey)
	cfg.Embedding.APIKey = ResolveEnvVars(cfg.Embedding.APIKey)
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

func (c Config) Validate() error {
	var errs []error
	if c.Chunking.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking.chunk_size must be positive"))
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking.chunk_overlap must be in [0, chunk_size)"))
	}
	positive := map[string]int{
		"extract.top_k":         c.Extract.TopK,
		"extract.max_retries":   c.Extract.MaxRetries,
		"extract.snippet_chars": c.Extract.SnippetChars,
		"extract.workers":       c.Extract.Workers,
		"verify.top_k":          c.Verify.TopK,
		"verify.quote_chars":    c.Verify.QuoteChars,
		"verify.max_depth":      c.Verify.MaxDepth,
		"server.worker_count":   c.Server.WorkerCount,
		"server.max_queue_size": c.Server.MaxQueueSize,
		"llm.max_tokens":        c.LLM.MaxTokens,
	}
	for _, k := range sortedKeys(positive) {
		if positive[k] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", k))
		}
	}

	switch c.LLM.Provider {
	case "ollama":
	case "openai":
		if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
			errs = append(errs, fmt.Errorf("llm.api_key is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown llm.provider %q", c.LLM.Provider))
	}

	switch c.Embedding.Provider {
	case "ollama", "none":
	case "genai":
		if c.Embedding.APIKey == "" {
			errs = append(errs, fmt.Errorf("embedding.api_key is required for the genai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level into a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log.level %q", l.Level)
	}
	return lvl, nil
}

func (c Config) ChunkerConfig() chunker.Config {
	return chunker.Config{ChunkSize: c.Chunking.ChunkSize, ChunkOverlap: c.Chunking.ChunkOverlap}
}

func (c Config) ExtractorConfig() extract.Config {
	return extract.Config{
		TopK:         c.Extract.TopK,
		MaxRetries:   c.Extract.MaxRetries,
		Temperature:  c.Extract.Temperature,
		SnippetChars: c.Extract.SnippetChars,
		Workers:      c.Extract.Workers,
		Fallback:     c.Extract.Fallback,
	}
}

func (c Config) VerifierConfig() verify.Config {
	return verify.Config{
		TopK:       c.Verify.TopK,
		QuoteChars: c.Verify.QuoteChars,
		MaxDepth:   c.Verify.MaxDepth,
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
