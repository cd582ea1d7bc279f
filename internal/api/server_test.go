package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/factgest/internal/chunker"
	"github.com/dgallion1/factgest/internal/config"
	"github.com/dgallion1/factgest/internal/doctree"
	"github.com/dgallion1/factgest/internal/extract"
	"github.com/dgallion1/factgest/internal/index"
	"github.com/dgallion1/factgest/internal/llm"
	"github.com/dgallion1/factgest/internal/pipeline"
	"github.com/dgallion1/factgest/internal/verify"
)

type stubGenerator struct{}

func (stubGenerator) GenerateStructured(context.Context, string, string, int, float64) (map[string]any, error) {
	return map[string]any{"facts": []any{
		map[string]any{"text": "Scope 1 emissions were 120 tCO2e.", "confidence": "high"},
	}}, nil
}

type echoCompleter struct{}

func (echoCompleter) Complete(context.Context, llm.CompletionRequest) (string, error) {
	return `{"facts":[]}`, nil
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *index.Memory) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	store := index.NewMemory()
	runner := pipeline.NewRunner(
		pipeline.NewIngester(store, chunker.DefaultConfig(), false, log),
		extract.New(store, stubGenerator{}, "", extract.DefaultConfig(), log),
		verify.New(store, verify.DefaultRules(), verify.DefaultConfig(), log),
		log,
	)
	orch := pipeline.NewOrchestrator(runner, pipeline.Options{WorkerCount: 1, MaxQueueSize: 10}, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	completer := llm.NewInstrumented(echoCompleter{}, "ollama:test-model", nil)
	return NewServer(orch, store, completer, log, cfg), store
}

func do(t *testing.T, srv http.Handler, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func uploadRequest(t *testing.T, path, field, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func waitJob(t *testing.T, srv http.Handler, id string) map[string]any {
	t.Helper()
	var body map[string]any
	require.Eventually(t, func() bool {
		rec, b := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		body = b
		return pipeline.JobStatus(b["status"].(string)).Done()
	}, 5*time.Second, 10*time.Millisecond)
	return body
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestIngestAndPoll(t *testing.T) {
	srv, store := newTestServer(t, nil)
	req := uploadRequest(t, "/api/ingest", "file", "report.txt", []byte("Scope 1 emissions were 120 tCO2e."))
	rec, body := do(t, srv, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	id, _ := body["job_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/api/jobs/"+id, body["poll_url"])
	assert.Equal(t, "ingest", body["kind"])

	job := waitJob(t, srv, id)
	assert.Equal(t, "completed", job["status"])
	assert.Equal(t, "report.txt", job["filename"])

	metas, err := store.ListMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "upload:report.txt", metas[0].SourceURI)
}

func TestIngestRejects(t *testing.T) {
	srv, _ := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadBytes = 10 })

	tests := []struct {
		name string
		req  *http.Request
		code int
	}{
		{"unsupported type", uploadRequest(t, "/api/ingest", "file", "sheet.xlsx", []byte("x")), http.StatusBadRequest},
		{"missing file", uploadRequest(t, "/api/ingest", "file", "", nil), http.StatusBadRequest},
		{"too large", uploadRequest(t, "/api/ingest", "file", "big.txt", bytes.Repeat([]byte("a"), 11)), http.StatusRequestEntityTooLarge},
		{"not multipart", jsonRequest(http.MethodPost, "/api/ingest", `{}`), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, srv, tt.req)
			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestBatchIngest(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range map[string]string{"a.txt": "Water use fell.", "b.exe": "MZ"} {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, _ = fw.Write([]byte(content))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/ingest/batch", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec, body := do(t, srv, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobs, _ := body["jobs"].([]any)
	require.Len(t, jobs, 2)

	var queued, rejected int
	for _, j := range jobs {
		m := j.(map[string]any)
		if _, ok := m["job_id"]; ok {
			queued++
		}
		if _, ok := m["error"]; ok {
			rejected++
		}
	}
	assert.Equal(t, 1, queued)
	assert.Equal(t, 1, rejected)
}

func TestExtractJob(t *testing.T) {
	srv, store := newTestServer(t, nil)
	_, err := store.Upsert(context.Background(), []doctree.Chunk{
		{Text: "Scope 1 emissions were 120 tCO2e.", FileName: "r.pdf", Page: 4},
	})
	require.NoError(t, err)

	rec, body := do(t, srv, jsonRequest(http.MethodPost, "/api/extract", `{"query":"scope emissions","company":"ACME","year":2023}`))
	require.Equal(t, http.StatusAccepted, rec.Code)

	job := waitJob(t, srv, body["job_id"].(string))
	require.Equal(t, "completed", job["status"])
	result := job["result"].(map[string]any)
	assert.Equal(t, "ACME", result["company"])
	assert.EqualValues(t, 2023, result["year"])
	facts := result["facts"].([]any)
	require.Len(t, facts, 1)
	assert.EqualValues(t, 4, facts[0].(map[string]any)["page"])
}

func TestExtractDefaults(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", nil)
	rec, body := do(t, srv, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	job := waitJob(t, srv, body["job_id"].(string))
	result := job["result"].(map[string]any)
	assert.Equal(t, "Unknown Co.", result["company"])
	assert.Equal(t, extract.RawNoHits, result["raw"])
}

func TestExtractBadJSON(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := do(t, srv, jsonRequest(http.MethodPost, "/api/extract", `{"query":`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerify(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, body := do(t, srv, jsonRequest(http.MethodPost, "/api/verify",
		`{"statements":["1 liter of diesel emits 2.68 kg CO2","The sky is green"]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	entries := body["entries"].([]any)
	require.Len(t, entries, 2)
	first := entries[0].(map[string]any)
	assert.Equal(t, "axiom", first["verification"].(map[string]any)["credibility"])
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["axiom"])
	assert.EqualValues(t, 1, summary["unsupported"])
}

func TestVerifyFacts(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, body := do(t, srv, jsonRequest(http.MethodPost, "/api/verify",
		`{"facts":[{"id":"fact_1_x","text":"t","claim":"1 liter of diesel is 2.68 kg","page":1}]}`))
	require.Equal(t, http.StatusOK, rec.Code)
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "1 liter of diesel is 2.68 kg", entries[0].(map[string]any)["statement"])
}

func TestVerifyJob(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, body := do(t, srv, jsonRequest(http.MethodPost, "/api/verify/jobs",
		`{"facts":[{"id":"fact_1_x","text":"t","claim":"1 liter of diesel emits 2.68 kg CO2","page":1},{"id":"fact_2_y","text":"The sky is green"}]}`))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "verify", body["kind"])

	job := waitJob(t, srv, body["job_id"].(string))
	require.Equal(t, "completed", job["status"])
	result := job["result"].(map[string]any)
	entries := result["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "1 liter of diesel emits 2.68 kg CO2", entries[0].(map[string]any)["statement"])
	assert.Equal(t, "The sky is green", entries[1].(map[string]any)["statement"])
	summary := result["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["axiom"])
	assert.EqualValues(t, 1, summary["unsupported"])
}

func TestVerifyJobRequiresInput(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := do(t, srv, jsonRequest(http.MethodPost, "/api/verify/jobs", `{"statements":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyRequiresInput(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, _ := do(t, srv, jsonRequest(http.MethodPost, "/api/verify", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJobNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "job not found", body["error"])
}

func TestListDocuments(t *testing.T) {
	srv, store := newTestServer(t, nil)
	_, err := store.Upsert(context.Background(), []doctree.Chunk{
		{Text: "one", FileName: "b.pdf", Page: 1},
		{Text: "two", FileName: "b.pdf", Page: 1},
		{Text: "three", FileName: "b.pdf", Page: 2},
		{Text: "four", FileName: "a.txt", Page: 1},
	})
	require.NoError(t, err)

	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	docs := body["documents"].([]any)
	require.Len(t, docs, 2)
	a := docs[0].(map[string]any)
	b := docs[1].(map[string]any)
	assert.Equal(t, "a.txt", a["file_name"])
	assert.EqualValues(t, 1, a["chunks"])
	assert.Equal(t, "b.pdf", b["file_name"])
	assert.EqualValues(t, 2, b["pages"])
	assert.EqualValues(t, 3, b["chunks"])
}

func TestLLMStats(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	_, err := srv.llm.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)

	rec, body := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ollama:test-model", body["model"])
	assert.EqualValues(t, 1, body["stats"].(map[string]any)["count"])
}

func TestLLMStatsUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.llm = nil
	rec, _ := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":           "report.pdf",
		"../../etc/passwd.txt": "passwd.txt",
		`C:\docs\esg.docx`:     "esg.docx",
		"..":                   "unnamed",
		"":                     "unnamed",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}
