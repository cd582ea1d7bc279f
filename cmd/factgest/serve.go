package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/factgest/internal/api"
	"github.com/dgallion1/factgest/internal/pipeline"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the factgest HTTP server",
	Long: `Start the HTTP API. Uploads and extractions run as background jobs
on a bounded queue; /api/verify answers synchronously and
/api/verify/jobs queues the same work.

Endpoints:
  GET  /health
  POST /api/ingest          multipart "file"
  POST /api/ingest/batch    multipart "files"
  POST /api/extract         {"query", "company", "year"}
  POST /api/verify          {"statements"} or {"facts"}
  POST /api/verify/jobs     {"statements"} or {"facts"}
  GET  /api/jobs/{jobID}
  GET  /api/documents
  GET  /api/stats/llm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}
		ctx := cmd.Context()
		log := newLogger(cfg.Log, os.Stdout, true)

		a, err := newApp(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		orch := pipeline.NewOrchestrator(a.runner, pipeline.Options{
			WorkerCount:  cfg.Server.WorkerCount,
			MaxQueueSize: cfg.Server.MaxQueueSize,
			JobTTL:       cfg.Server.JobTTL,
		}, log)
		orch.Start(ctx)
		defer orch.Stop()

		httpServer := &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      api.NewServer(orch, a.store, a.completer, log, cfg),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			log.Info("shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
		}()

		log.Info("starting factgest", "port", cfg.Server.Port, "workers", cfg.Server.WorkerCount)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "port to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}
