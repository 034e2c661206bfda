package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/exexexll/figwork-knowledge/internal/config"
	db "github.com/exexexll/figwork-knowledge/internal/core/database"
	"github.com/exexexll/figwork-knowledge/internal/core/llm"
	objectclient "github.com/exexexll/figwork-knowledge/internal/core/object-client"
	"github.com/exexexll/figwork-knowledge/internal/extract"
	"github.com/exexexll/figwork-knowledge/internal/ingest"
	"github.com/exexexll/figwork-knowledge/internal/retrieval"
	"github.com/exexexll/figwork-knowledge/internal/scan"
	"github.com/exexexll/figwork-knowledge/internal/schedule"
)

// App owns every component of the service and their lifecycles.
type App struct {
	DBClient  *db.DatabaseClient
	Embedder  *llm.GeminiEmbedder
	Ingestor  *ingest.Ingestor
	Engine    *retrieval.Engine
	Scheduler *schedule.CronScheduler
	Server    *Server
	logger    *zap.Logger
	sweepSpec string
	sweepJob  schedule.Job
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized")

	objClient, err := objectclient.NewS3Client(initCtx, cfg, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	chunker := ingest.NewChunker(
		ingest.WithMinTokens(cfg.MinTokens),
		ingest.WithMaxTokens(cfg.MaxTokens),
		ingest.WithOverlapTokens(cfg.OverlapTokens),
	)

	ingestor, err := ingest.NewIngestor(
		dbClient,
		objClient,
		embedder,
		extract.NewDocconvExtractor(),
		scan.NewScanner(),
		chunker,
		ingest.Config{
			Workers:           cfg.WorkerCount,
			QueueDepth:        cfg.QueueDepth,
			MaxFileSizeMB:     cfg.MaxFileSizeMB,
			ProcessingTimeout: time.Duration(cfg.ProcessingTimeout) * time.Minute,
		},
		logger,
	)
	if err != nil {
		return nil, err
	}

	engine := retrieval.NewEngine(dbClient, embedder, cfg.TopK, logger)

	scheduler := schedule.NewCronScheduler(logger)
	sweep := ingest.NewReconcileJob(dbClient, ingestor,
		time.Duration(cfg.ProcessingTimeout)*time.Minute, logger)

	server := NewServer(cfg, dbClient, ingestor, engine, logger)

	return &App{
		DBClient:  dbClient,
		Embedder:  embedder,
		Ingestor:  ingestor,
		Engine:    engine,
		Scheduler: scheduler,
		Server:    server,
		logger:    logger,
		sweepSpec: cfg.SweepSpec,
		sweepJob:  sweep,
	}, nil
}

// Run starts the workers, the reconciliation sweep and the HTTP server, and
// blocks until ctx is done or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.Ingestor.Start(ctx)

	if err := a.Scheduler.AddJob(a.sweepJob, a.sweepSpec); err != nil {
		return err
	}
	a.Scheduler.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.Server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases all resources.
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Ingestor != nil {
		a.Ingestor.Release()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
