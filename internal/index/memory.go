package index

import (
	"context"
	"strings"
	"sync"

	"github.com/dgallion1/factgest/internal/doctree"
)

// Memory is an in-process index ranked by keyword overlap.
type Memory struct {
	mu   sync.RWMutex
	ids  []string
	rows map[string]Hit
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string]Hit)}
}

func (m *Memory) Upsert(_ context.Context, chunks []doctree.Chunk) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		id := ChunkID(c, i)
		if _, ok := m.rows[id]; !ok {
			m.ids = append(m.ids, id)
		}
		m.rows[id] = Hit{ID: id, Text: c.Text, Meta: metaOf(c)}
		n++
	}
	return n, nil
}

func (m *Memory) Query(_ context.Context, text string, n int, filter Filter) ([]Hit, error) {
	terms := termSet(text)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var hits []Hit
	for _, id := range m.ids {
		h := m.rows[id]
		if !filter.Matches(h.Meta) {
			continue
		}
		h.Score = keywordScore(terms, h.Text)
		hits = append(hits, h)
	}
	return rank(hits, n, true), nil
}

func (m *Memory) ListMetadata(_ context.Context) ([]Metadata, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Metadata, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.rows[id].Meta)
	}
	sortMetadata(out)
	return out, nil
}

func (m *Memory) Close() error { return nil }
