package core

import "errors"

// Pipeline stage failures. Each stage wraps one of these sentinels so the
// worker can record the failing stage on the document and the queue layer can
// classify the error.
var (
	// ErrUnsupportedFormat indicates the declared format is outside the
	// closed set the extractor accepts.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtraction indicates the extraction library failed on the raw bytes.
	ErrExtraction = errors.New("text extraction failed")

	// ErrFileValidation indicates the raw bytes failed the file scan.
	ErrFileValidation = errors.New("file validation failed")

	// ErrContentScan indicates the extracted text failed the content scan.
	ErrContentScan = errors.New("content scan failed")

	// ErrEmptyDocument indicates chunking produced no chunks. An empty or
	// near-empty document is an ingestion error, never a silent success.
	ErrEmptyDocument = errors.New("document produced no chunks")

	// ErrEmbeddingService indicates the embedding call failed or returned a
	// malformed batch; the whole document fails, there is no partial recovery.
	ErrEmbeddingService = errors.New("embedding service failed")

	// ErrStorage indicates persisting the chunk set failed.
	ErrStorage = errors.New("chunk storage failed")

	// ErrDocumentNotFound indicates a lookup by document ID matched nothing.
	ErrDocumentNotFound = errors.New("document not found")
)
