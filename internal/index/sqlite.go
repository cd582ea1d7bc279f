package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgallion1/factgest/internal/doctree"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	text         TEXT NOT NULL,
	file_name    TEXT NOT NULL,
	page         INTEGER NOT NULL,
	section_path TEXT NOT NULL DEFAULT '',
	source_uri   TEXT NOT NULL DEFAULT '',
	embedding    TEXT,
	created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_name ON chunks(file_name);
`

// filterColumns maps filter keys to columns.
var filterColumns = map[string]string{
	"file_name":    "file_name",
	"page":         "page",
	"section_path": "section_path",
	"source_uri":   "source_uri",
}

// SQLiteStore persists chunks and their embeddings in a SQLite file.
// Queries rank by cosine similarity when an embedder is configured and
// by keyword overlap otherwise.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
	log      *slog.Logger
}

// OpenSQLite opens (or creates) the store at path. Use ":memory:" for tests.
// embedder may be nil.
func OpenSQLite(path string, embedder Embedder, log *slog.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db, embedder: embedder, log: log}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Upsert stores chunks under ids "<file>::<page>::<i>", replacing existing
// rows so re-ingesting a file is idempotent. Empty chunks are skipped.
func (s *SQLiteStore) Upsert(ctx context.Context, chunks []doctree.Chunk) (int, error) {
	type row struct {
		id string
		c  doctree.Chunk
	}
	var rows []row
	for i, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			s.log.Warn("skipping empty chunk", "file", c.FileName, "page", c.Page)
			continue
		}
		rows = append(rows, row{id: ChunkID(c, i), c: c})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var vectors [][]float32
	if s.embedder != nil {
		texts := make([]string, len(rows))
		for i, r := range rows {
			texts[i] = r.c.Text
		}
		var err error
		vectors, err = s.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO chunks
		(id, text, file_name, page, section_path, source_uri, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range rows {
		var emb any
		if vectors != nil {
			raw, err := json.Marshal(vectors[i])
			if err != nil {
				return 0, fmt.Errorf("marshal embedding: %w", err)
			}
			emb = string(raw)
		}
		if _, err := stmt.ExecContext(ctx, r.id, r.c.Text, r.c.FileName, r.c.Page, r.c.SectionPath, r.c.SourceURI, emb); err != nil {
			return 0, fmt.Errorf("insert chunk %s: %w", r.id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

// Query returns up to n chunks matching filter, best first.
func (s *SQLiteStore) Query(ctx context.Context, text string, n int, filter Filter) ([]Hit, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	var queryVec []float32
	if s.embedder != nil {
		queryVec, err = s.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, file_name, page, section_path, source_uri, embedding FROM chunks`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	terms := termSet(text)
	var hits []Hit
	for rows.Next() {
		var (
			h   Hit
			emb sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.Text, &h.Meta.FileName, &h.Meta.Page, &h.Meta.SectionPath, &h.Meta.SourceURI, &emb); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		h.Score = s.score(queryVec, emb, terms, h)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return rank(hits, n, queryVec == nil), nil
}

func (s *SQLiteStore) score(queryVec []float32, emb sql.NullString, terms map[string]struct{}, h Hit) float64 {
	if queryVec == nil || !emb.Valid {
		return keywordScore(terms, h.Text)
	}
	var vec []float32
	if err := json.Unmarshal([]byte(emb.String), &vec); err != nil {
		s.log.Warn("bad stored embedding", "id", h.ID, "error", err)
		return 0
	}
	sim, err := CosineSimilarity(queryVec, vec)
	if err != nil {
		s.log.Warn("embedding dimension mismatch", "id", h.ID, "error", err)
		return 0
	}
	return sim
}

// ListMetadata returns the metadata of every stored chunk.
func (s *SQLiteStore) ListMetadata(ctx context.Context) ([]Metadata, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_name, page, section_path, source_uri FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("list metadata: %w", err)
	}
	defer rows.Close()

	var out []Metadata
	for rows.Next() {
		var m Metadata
		if err := rows.Scan(&m.FileName, &m.Page, &m.SectionPath, &m.SourceURI); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortMetadata(out)
	return out, nil
}

func whereClause(filter Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		if _, ok := filterColumns[k]; !ok {
			return "", nil, fmt.Errorf("unsupported filter key %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		parts []string
		args  []any
	)
	for _, k := range keys {
		parts = append(parts, filterColumns[k]+" = ?")
		args = append(args, filter[k])
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
