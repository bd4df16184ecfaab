// Package server exposes ingestion and question answering over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

const maxUploadBytes = 64 << 20

type Ingester interface {
	Ingest(ctx context.Context, path, displayName string) (*models.IngestResult, error)
}

type Answerer interface {
	Answer(ctx context.Context, question string) (*models.PromptResponse, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	ingester   Ingester
	answerer   Answerer
	uploadDir  string
}

func NewServer(addr, uploadDir string, ingester Ingester, answerer Answerer) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		ingester:  ingester,
		answerer:  answerer,
		uploadDir: uploadDir,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("POST /ingest", s.handleIngest)
	s.router.HandleFunc("POST /query", s.handleQuery)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("Starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
