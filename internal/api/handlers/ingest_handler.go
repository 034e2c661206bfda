package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/ingest"
	"github.com/exexexll/figwork-knowledge/internal/models"
)

// IngestHandler accepts ingestion job payloads from the upload service and
// exposes document lifecycle status.
type IngestHandler struct {
	db       core.DbClient
	ingestor *ingest.Ingestor
	logger   *zap.Logger
}

func NewIngestHandler(db core.DbClient, ingestor *ingest.Ingestor, logger *zap.Logger) *IngestHandler {
	return &IngestHandler{db: db, ingestor: ingestor, logger: logger}
}

// SubmitJob registers the document (pending) if needed and enqueues the job.
func (h *IngestHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var job models.IngestionJob
	if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
		http.Error(w, "invalid job payload", http.StatusBadRequest)
		return
	}
	if job.DocumentID == "" || job.SourceLocation == "" || job.Format == "" ||
		job.TenantID == "" || job.CollectionID == "" {
		http.Error(w, "document_id, source_location, format, tenant_id and collection_id are required", http.StatusBadRequest)
		return
	}

	_, err := h.db.GetDocumentByID(r.Context(), job.DocumentID)
	if errors.Is(err, core.ErrDocumentNotFound) {
		now := time.Now().UTC()
		doc := &models.Document{
			ID:           job.DocumentID,
			TenantID:     job.TenantID,
			CollectionID: job.CollectionID,
			FileName:     job.FileName,
			StorageURL:   job.SourceLocation,
			Format:       job.Format,
			Status:       models.StatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := h.db.CreateDocument(r.Context(), doc); err != nil {
			h.logger.Error("create document failed", zap.String("document_id", job.DocumentID), zap.Error(err))
			http.Error(w, "failed to register document", http.StatusInternalServerError)
			return
		}
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.ingestor.Enqueue(job)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"document_id": job.DocumentID,
		"status":      models.StatusPending,
	})
}

// GetDocument returns a document's lifecycle status.
func (h *IngestHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "documentID")
	doc, err := h.db.GetDocumentByID(r.Context(), docID)
	if errors.Is(err, core.ErrDocumentNotFound) {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}
