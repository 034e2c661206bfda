package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/api/handlers"
	"github.com/exexexll/figwork-knowledge/internal/config"
	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/ingest"
	"github.com/exexexll/figwork-knowledge/internal/retrieval"
)

// Server wraps the HTTP server instance and its handlers. The API is the
// interface the external collaborators use: the upload service posts job
// payloads, the conversational agent posts retrieval queries.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, ing *ingest.Ingestor, engine *retrieval.Engine, logger *zap.Logger) *Server {
	ingestHandler := handlers.NewIngestHandler(db, ing, logger)
	queryHandler := handlers.NewQueryHandler(engine, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(api chi.Router) {
		api.Post("/ingest", ingestHandler.SubmitJob)
		api.Get("/documents/{documentID}", ingestHandler.GetDocument)
		api.Post("/query", queryHandler.Query)
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
