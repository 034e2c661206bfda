package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/models"
)

// ReconcileJob re-enqueues documents stuck in processing, typically after a
// worker crash mid-pipeline. Each stuck document is reset to pending and
// handed back to the ingestor; the claim then works as for any fresh job.
type ReconcileJob struct {
	db        core.DbClient
	ingestor  *Ingestor
	olderThan time.Duration
	batchSize int
	logger    *zap.Logger
}

func NewReconcileJob(db core.DbClient, ingestor *Ingestor, olderThan time.Duration, logger *zap.Logger) *ReconcileJob {
	if olderThan <= 0 {
		olderThan = 15 * time.Minute
	}
	return &ReconcileJob{
		db:        db,
		ingestor:  ingestor,
		olderThan: olderThan,
		batchSize: 50,
		logger:    logger,
	}
}

func (j *ReconcileJob) Name() string {
	return "ingest_reconcile"
}

func (j *ReconcileJob) Run(ctx context.Context) error {
	docs, err := j.db.ListStuckDocuments(ctx, j.olderThan, j.batchSize)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		log := j.logger.With(zap.String("document_id", doc.ID))
		if err := j.db.SetDocumentStatus(ctx, doc.ID, models.StatusPending, "requeued after stalled processing"); err != nil {
			log.Error("reset stuck document failed", zap.Error(err))
			continue
		}
		job := models.IngestionJob{
			DocumentID:     doc.ID,
			SourceLocation: doc.StorageURL,
			Format:         doc.Format,
			TenantID:       doc.TenantID,
			CollectionID:   doc.CollectionID,
			FileName:       doc.FileName,
		}
		if !j.ingestor.TryEnqueue(job) {
			// Queue full; the document is pending again and the next sweep
			// picks it up.
			log.Warn("queue full, leaving document pending")
			continue
		}
		log.Info("stuck document requeued", zap.Duration("older_than", j.olderThan))
	}
	return nil
}
