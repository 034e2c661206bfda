package core

import (
	"context"
	"time"

	"github.com/exexexll/figwork-knowledge/internal/models"
)

// DbClient defines all persistence operations the pipeline and retrieval
// engine need. It abstracts Postgres/pgvector so higher layers never depend
// on a specific database.
type DbClient interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)

	// ClaimDocument atomically transitions a document from any settled state
	// (pending, ready, error) to processing. It reports false when another
	// worker already holds the document, so duplicate jobs for the same
	// document never run concurrently.
	ClaimDocument(ctx context.Context, id string) (bool, error)

	// SetDocumentStatus records a terminal transition (ready or error) with
	// an optional human-readable reason for the error case.
	SetDocumentStatus(ctx context.Context, id, status, reason string) error

	// ReplaceDocumentChunks deletes any previously persisted chunks for the
	// document and inserts the new set in one transaction, so readers see
	// either the old chunk set or the new one, never a mix.
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error

	GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error)

	// SearchChunks returns the limit nearest chunks to the query vector by
	// cosine distance, strictly scoped to one tenant and collection.
	SearchChunks(ctx context.Context, tenantID, collectionID string, queryVec []float32, limit int) ([]models.ScoredChunk, error)

	// ListStuckDocuments returns documents that have sat in processing or
	// pending longer than the given age, typically after a worker crash or a
	// lost enqueue.
	ListStuckDocuments(ctx context.Context, olderThan time.Duration, limit int) ([]models.Document, error)
}

// ObjectClient defines interactions with S3 or any compatible object store.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}

// EmbeddingProvider converts an ordered batch of texts into an ordered batch
// of fixed-dimension vectors; output index i corresponds to input index i.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentExtractor converts raw document bytes of a declared format into
// plain UTF-8 text. Pure format-to-text; no validation or chunking.
type DocumentExtractor interface {
	Extract(ctx context.Context, raw []byte, format string) (string, error)
}

// ScanReport is the outcome of a scanner call. Warnings are non-fatal and
// only logged; a non-empty Reason with Valid=false aborts the pipeline.
type ScanReport struct {
	Valid    bool
	Reason   string
	Warnings []string
}

// ContentScanner is the safety gate consumed by the pipeline. Both calls run
// before any chunk is produced.
type ContentScanner interface {
	// ValidateFile checks the raw bytes (size, type, magic numbers).
	ValidateFile(ctx context.Context, raw []byte, filename, format string, maxSizeMB int) (ScanReport, error)

	// ScanText checks the extracted text (encoding, disallowed content).
	ScanText(ctx context.Context, text string) (ScanReport, error)
}
