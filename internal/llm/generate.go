package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// DefaultBackoff is the base of the linear delay between attempts.
const DefaultBackoff = 1200 * time.Millisecond

// Generator turns a Completer into a structured-output source that always
// returns a JSON object or fails after a fixed number of attempts.
type Generator struct {
	completer Completer
	log       *slog.Logger
	backoff   time.Duration
	maxTokens int
	schema    *jsonschema.Schema
}

func NewGenerator(c Completer, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		completer: c,
		log:       log,
		backoff:   DefaultBackoff,
		maxTokens: DefaultMaxTokens,
	}
}

// WithBackoff returns a copy that waits base*n after the n-th failed attempt.
func (g *Generator) WithBackoff(base time.Duration) *Generator {
	cp := *g
	if base < 0 {
		base = 0
	}
	cp.backoff = base
	return &cp
}

// WithMaxTokens returns a copy with a different completion length cap.
func (g *Generator) WithMaxTokens(n int) *Generator {
	cp := *g
	if n > 0 {
		cp.maxTokens = n
	}
	return &cp
}

// WithSchema returns a copy that also validates every parsed object
// against schema. A failed validation counts as malformed output.
func (g *Generator) WithSchema(schema *jsonschema.Schema) *Generator {
	cp := *g
	cp.schema = schema
	return &cp
}

// GenerateStructured performs up to maxRetries completion attempts and
// returns the first response that parses into a JSON object. Transport and
// parse failures consume the same attempt budget. On exhaustion the error
// matches ErrGenerationExhausted and wraps the last failure.
func (g *Generator) GenerateStructured(ctx context.Context, system, user string, maxRetries int, temperature float64) (map[string]any, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	req := CompletionRequest{
		System:      system,
		Prompt:      user,
		Temperature: temperature,
		MaxTokens:   g.maxTokens,
	}

	var (
		result   map[string]any
		attempts int
	)
	err := retry.Do(
		func() error {
			attempts++
			raw, err := g.completer.Complete(ctx, req)
			if err != nil {
				g.log.Warn("completion failed", "attempt", attempts, "error", err)
				return err
			}
			obj, err := ParseObject(raw)
			if err == nil {
				err = g.validate(raw, obj)
			}
			if err != nil {
				g.log.Warn("invalid structured output", "attempt", attempts, "raw", truncate(raw, 200))
				return err
			}
			result = obj
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxRetries)),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return g.backoff * time.Duration(n+1)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return nil, &GenerationError{Attempts: attempts, Err: err}
	}
	return result, nil
}

func (g *Generator) validate(raw string, obj map[string]any) error {
	if g.schema == nil {
		return nil
	}
	if err := g.schema.Validate(obj); err != nil {
		return &MalformedOutputError{Raw: raw, Err: fmt.Errorf("schema: %w", err)}
	}
	return nil
}

// CompileSchema compiles a JSON Schema document for use with WithSchema.
func CompileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}
