package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dgallion1/factgest/internal/extract"
	"github.com/dgallion1/factgest/internal/pipeline"
	"github.com/dgallion1/factgest/internal/verify"
)

const maxJSONBody = 4 << 20

// handleExtract queues an extraction. Missing fields take the configured
// defaults.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extract.Request
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		req.Query = s.cfg.Extract.Query
	}
	if req.Company == "" {
		req.Company = s.cfg.Extract.Company
	}
	if req.Year == 0 {
		req.Year = s.cfg.Extract.Year
	}

	job := pipeline.NewExtractJob(req)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted(job))
}

type verifyRequest struct {
	Statements []string       `json:"statements"`
	Facts      []extract.Fact `json:"facts"`
}

func decodeVerifyRequest(w http.ResponseWriter, r *http.Request) (verifyRequest, bool) {
	var req verifyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	if len(req.Statements) == 0 && len(req.Facts) == 0 {
		jsonError(w, "statements or facts are required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// handleVerify verifies statements or facts synchronously.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVerifyRequest(w, r)
	if !ok {
		return
	}

	runner := s.orchestrator.Runner()
	var (
		entries []verify.Entry
		err     error
	)
	if len(req.Facts) > 0 {
		entries, err = runner.Verify(r.Context(), req.Facts)
	} else {
		entries, err = runner.VerifyStatements(r.Context(), req.Statements)
	}
	if err != nil {
		s.log.Warn("verification interrupted", "verified", len(entries), "error", err)
		jsonError(w, "verification interrupted: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, pipeline.VerifyResult{Entries: entries, Summary: verify.Summary(entries)})
}

// handleVerifyJob queues a verification and returns a job to poll. Facts are
// reduced to their statements first.
func (s *Server) handleVerifyJob(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeVerifyRequest(w, r)
	if !ok {
		return
	}
	statements := req.Statements
	if len(req.Facts) > 0 {
		statements = make([]string, len(req.Facts))
		for i, f := range req.Facts {
			statements[i] = verify.StatementOf(f)
		}
	}

	job := pipeline.NewVerifyJob(statements)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, accepted(job))
}
