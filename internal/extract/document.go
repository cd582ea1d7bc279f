package extract

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Markers recorded in Document.Raw when the model did not produce the facts.
const (
	RawNoHits   = "no_hits"
	RawFallback = "fallback_regex_miner"
)

// Document is the persisted result of one extraction run.
type Document struct {
	Company string `json:"company"`
	Year    int    `json:"year"`
	Facts   []Fact `json:"facts"`
	Raw     string `json:"raw,omitempty"`
}

// WriteDocument writes doc to path as indented JSON, creating parent
// directories as needed.
func WriteDocument(path string, doc *Document) error {
	if doc.Facts == nil {
		doc.Facts = []Fact{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal facts document: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write facts document: %w", err)
	}
	return nil
}

// ReadDocument loads a facts document written by WriteDocument.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read facts document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode facts document %s: %w", path, err)
	}
	if doc.Facts == nil {
		doc.Facts = []Fact{}
	}
	return &doc, nil
}
