package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/models"
)

// Config tunes the ingestion workers.
//
// Workers:           bounded pool size; each worker runs one document fully
//                    and sequentially, different documents run concurrently.
// QueueDepth:        in-memory job buffer; Enqueue blocks when full.
// MaxFileSizeMB:     passed to the file validation scan.
// ProcessingTimeout: wall-clock budget for one document end to end.
type Config struct {
	Workers           int
	QueueDepth        int
	MaxFileSizeMB     int
	ProcessingTimeout time.Duration
}

// Ingestor runs the ingestion pipeline: claim → fetch → validate → extract →
// scan → chunk → embed → store, transitioning document status on the way.
// Jobs arrive from the external queue via Enqueue.
type Ingestor struct {
	db        core.DbClient
	obj       core.ObjectClient
	embedder  core.EmbeddingProvider
	extractor core.DocumentExtractor
	scanner   core.ContentScanner
	chunker   *Chunker
	cfg       Config
	jobs      chan models.IngestionJob
	pool      *ants.Pool
	logger    *zap.Logger
}

// NewIngestor constructs the ingestor with a bounded worker pool and job
// buffer.
func NewIngestor(
	db core.DbClient,
	obj core.ObjectClient,
	embedder core.EmbeddingProvider,
	extractor core.DocumentExtractor,
	scanner core.ContentScanner,
	chunker *Chunker,
	cfg Config,
	logger *zap.Logger,
) (*Ingestor, error) {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.QueueDepth < 1 {
		cfg.QueueDepth = 64
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 5 * time.Minute
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Ingestor{
		db:        db,
		obj:       obj,
		embedder:  embedder,
		extractor: extractor,
		scanner:   scanner,
		chunker:   chunker,
		cfg:       cfg,
		jobs:      make(chan models.IngestionJob, cfg.QueueDepth),
		pool:      pool,
		logger:    logger,
	}, nil
}

// Start consumes jobs until ctx is done. Submission to the pool blocks while
// all workers are busy, so at most cfg.Workers documents process at once.
func (i *Ingestor) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				i.logger.Info("ingestor shutting down")
				return
			case job := <-i.jobs:
				j := job
				if err := i.pool.Submit(func() {
					procCtx, cancel := context.WithTimeout(context.Background(), i.cfg.ProcessingTimeout)
					defer cancel()
					if err := i.Process(procCtx, j); err != nil {
						i.logger.Error("ingestion job failed",
							zap.String("document_id", j.DocumentID), zap.Error(err))
					}
				}); err != nil {
					i.logger.Error("submit job failed",
						zap.String("document_id", j.DocumentID), zap.Error(err))
				}
			}
		}
	}()
}

// Enqueue schedules a job. Blocks when the buffer is full.
func (i *Ingestor) Enqueue(job models.IngestionJob) {
	i.jobs <- job
}

// TryEnqueue schedules a job unless the buffer is full.
func (i *Ingestor) TryEnqueue(job models.IngestionJob) bool {
	select {
	case i.jobs <- job:
		return true
	default:
		return false
	}
}

// QueueLen reports how many jobs are buffered and not yet picked up.
func (i *Ingestor) QueueLen() int {
	return len(i.jobs)
}

// Release stops the worker pool. The ingestor must not be used afterwards.
func (i *Ingestor) Release() {
	i.pool.Release()
}

// Process runs the full pipeline for one job. The claim makes duplicate jobs
// for the same document harmless: the loser sees claimed=false and returns.
// On failure the document is marked error and the failure is returned to the
// queue layer, which owns retry/backoff; no retries happen here.
func (i *Ingestor) Process(ctx context.Context, job models.IngestionJob) error {
	log := i.logger.With(
		zap.String("document_id", job.DocumentID),
		zap.String("tenant_id", job.TenantID),
		zap.String("collection_id", job.CollectionID),
	)

	claimed, err := i.db.ClaimDocument(ctx, job.DocumentID)
	if err != nil {
		return fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		log.Info("document held by another worker, skipping")
		return nil
	}

	start := time.Now()
	count, err := i.run(ctx, job, log)
	if err != nil {
		log.Error("ingestion failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		if serr := i.db.SetDocumentStatus(ctx, job.DocumentID, models.StatusError, err.Error()); serr != nil {
			log.Error("record error status failed", zap.Error(serr))
		}
		return err
	}

	if err := i.db.SetDocumentStatus(ctx, job.DocumentID, models.StatusReady, ""); err != nil {
		log.Error("record ready status failed", zap.Error(err))
		return err
	}
	log.Info("document ingested", zap.Int("chunks", count), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// run executes the pipeline stages in order and returns the stored chunk
// count. Each stage failure wraps its taxonomy sentinel.
func (i *Ingestor) run(ctx context.Context, job models.IngestionJob, log *zap.Logger) (int, error) {
	bucket, key := parseS3URL(job.SourceLocation)
	raw, err := i.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return 0, fmt.Errorf("fetch %q: %w", job.SourceLocation, err)
	}

	fileReport, err := i.scanner.ValidateFile(ctx, raw, job.FileName, job.Format, i.cfg.MaxFileSizeMB)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrFileValidation, err)
	}
	logWarnings(log, fileReport.Warnings)
	if !fileReport.Valid {
		return 0, fmt.Errorf("%w: %s", core.ErrFileValidation, fileReport.Reason)
	}

	text, err := i.extractor.Extract(ctx, raw, job.Format)
	if err != nil {
		return 0, err
	}

	textReport, err := i.scanner.ScanText(ctx, text)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrContentScan, err)
	}
	logWarnings(log, textReport.Warnings)
	if !textReport.Valid {
		return 0, fmt.Errorf("%w: %s", core.ErrContentScan, textReport.Reason)
	}

	chunks := i.chunker.Split(text)
	if len(chunks) == 0 {
		return 0, core.ErrEmptyDocument
	}

	// One embedding call per document; output order matches input order.
	texts := make([]string, len(chunks))
	for idx := range chunks {
		texts[idx] = chunks[idx].Content
	}
	vecs, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrEmbeddingService, err)
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("%w: got %d vectors for %d chunks", core.ErrEmbeddingService, len(vecs), len(chunks))
	}

	now := time.Now().UTC()
	rows := make([]models.DocumentChunk, len(chunks))
	for idx := range chunks {
		rows[idx] = models.DocumentChunk{
			ID:           uuid.NewString(),
			DocumentID:   job.DocumentID,
			TenantID:     job.TenantID,
			CollectionID: job.CollectionID,
			Position:     idx,
			Content:      chunks[idx].Content,
			TokenCount:   chunks[idx].TokenCount,
			Embedding:    vecs[idx],
			CreatedAt:    now,
		}
	}

	if err := i.db.ReplaceDocumentChunks(ctx, job.DocumentID, rows); err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrStorage, err)
	}
	return len(rows), nil
}

func logWarnings(log *zap.Logger, warnings []string) {
	for _, w := range warnings {
		log.Warn("scanner warning", zap.String("warning", w))
	}
}

// parseS3URL extracts the bucket and key from a virtual-hosted style S3 URL,
// e.g. https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf.
func parseS3URL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}
