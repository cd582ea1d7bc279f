// Package index stores report chunks and retrieves them as evidence.
package index

import (
	"context"
	"fmt"

	"github.com/dgallion1/factgest/internal/doctree"
)

// Metadata describes where a chunk came from.
type Metadata struct {
	FileName    string `json:"file_name"`
	Page        int    `json:"page"`
	SectionPath string `json:"section_path"`
	SourceURI   string `json:"source_uri"`
}

// Hit is one retrieved chunk, ordered by the index's own relevance ranking.
type Hit struct {
	ID    string   `json:"id"`
	Text  string   `json:"text"`
	Meta  Metadata `json:"meta"`
	Score float64  `json:"score"`
}

// Filter is an equality filter over metadata fields. Only the keys
// file_name, page, section_path and source_uri are recognized.
type Filter map[string]any

// Index is the read side used by extraction and verification.
type Index interface {
	Query(ctx context.Context, text string, n int, filter Filter) ([]Hit, error)
	ListMetadata(ctx context.Context) ([]Metadata, error)
}

// Writer adds chunks to an index.
type Writer interface {
	Upsert(ctx context.Context, chunks []doctree.Chunk) (int, error)
}

// Store is an index that can also be written.
type Store interface {
	Index
	Writer
	Close() error
}

// ChunkID is the stable id of the i-th chunk of one ingested file.
func ChunkID(c doctree.Chunk, i int) string {
	return fmt.Sprintf("%s::%d::%d", c.FileName, c.Page, i)
}

func metaOf(c doctree.Chunk) Metadata {
	return Metadata{
		FileName:    c.FileName,
		Page:        c.Page,
		SectionPath: c.SectionPath,
		SourceURI:   c.SourceURI,
	}
}

// Matches reports whether m satisfies every filter entry.
func (f Filter) Matches(m Metadata) bool {
	for k, v := range f {
		switch k {
		case "file_name":
			if s, _ := v.(string); s != m.FileName {
				return false
			}
		case "section_path":
			if s, _ := v.(string); s != m.SectionPath {
				return false
			}
		case "source_uri":
			if s, _ := v.(string); s != m.SourceURI {
				return false
			}
		case "page":
			if p, ok := toInt(v); !ok || p != m.Page {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
