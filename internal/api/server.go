// Package api exposes the pipeline over HTTP.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/factgest/internal/config"
	"github.com/dgallion1/factgest/internal/index"
	"github.com/dgallion1/factgest/internal/llm"
	"github.com/dgallion1/factgest/internal/pipeline"
)

// Server is the HTTP API server for factgest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	index        index.Index
	llm          *llm.Instrumented
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. completer may be nil,
// in which case /api/stats/llm reports unavailable.
func NewServer(orch *pipeline.Orchestrator, idx index.Index, completer *llm.Instrumented, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		index:        idx,
		llm:          completer,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/ingest", s.handleIngest)
		r.Post("/ingest/batch", s.handleBatchIngest)
		r.Post("/extract", s.handleExtract)
		r.Post("/verify", s.handleVerify)
		r.Post("/verify/jobs", s.handleVerifyJob)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
