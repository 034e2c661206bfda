package models

import (
	"time"
)

// Document lifecycle states. A document is created as "pending" by the upload
// service; after that only the ingestion worker mutates it.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Declared document formats accepted by the extractor. The set is closed;
// anything else fails ingestion with an unsupported-format error.
const (
	FormatPDF      = "pdf"
	FormatDocx     = "docx"
	FormatText     = "txt"
	FormatMarkdown = "md"
)

// Document represents an uploaded knowledge file tracked through ingestion.
type Document struct {
	ID           string    `db:"id" json:"id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	CollectionID string    `db:"collection_id" json:"collection_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	StorageURL   string    `db:"storage_url" json:"storage_url"` // S3 object URL
	Format       string    `db:"format" json:"format"`
	Status       string    `db:"status" json:"status"` // pending | processing | ready | error
	StatusReason string    `db:"status_reason" json:"status_reason,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one embedded text chunk of a document. Position is
// the chunk's index in the sequence produced for that document and always
// matches source order.
type DocumentChunk struct {
	ID           string    `db:"id" json:"id"`
	DocumentID   string    `db:"document_id" json:"document_id"`
	TenantID     string    `db:"tenant_id" json:"tenant_id"`
	CollectionID string    `db:"collection_id" json:"collection_id"`
	Position     int       `db:"position" json:"position"`
	Content      string    `db:"content" json:"content"`
	TokenCount   int       `db:"token_count" json:"token_count"`
	Embedding    []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ScoredChunk is a retrieval result: a chunk plus its cosine similarity to
// the query embedding.
type ScoredChunk struct {
	DocumentChunk
	Similarity float32 `json:"similarity"`
}

// IngestionJob is the payload consumed from the job queue. The queue owns
// retry/backoff and dead-lettering; this service only runs the pipeline for
// the payload and reports success or failure back to it.
type IngestionJob struct {
	DocumentID     string `json:"document_id"`
	SourceLocation string `json:"source_location"`
	Format         string `json:"format"`
	TenantID       string `json:"tenant_id"`
	CollectionID   string `json:"collection_id"`
	FileName       string `json:"file_name,omitempty"`
}
