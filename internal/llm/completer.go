package llm

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"
)

// DefaultMaxTokens caps completion length for structured generation.
const DefaultMaxTokens = 4096

// CompletionRequest is one system+user prompt pair sent to a model.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completer returns the raw text a model produces for a request.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ErrGenerationExhausted is matched by errors.Is when structured generation
// ran out of attempts.
var ErrGenerationExhausted = errors.New("structured generation exhausted retries")

// TransportError is a network, timeout or non-success response from a model server.
type TransportError struct {
	StatusCode int // 0 for network failures
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("transport error: %s", truncate(e.Message, 200))
	}
	return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedOutputError means the model text could not be coerced into a JSON object.
type MalformedOutputError struct {
	Raw string
	Err error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model output: %v (raw: %s)", e.Err, truncate(e.Raw, 200))
	}
	return fmt.Sprintf("malformed model output (raw: %s)", truncate(e.Raw, 200))
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// GenerationError wraps the last failure after every attempt was spent.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("structured generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationExhausted }

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
