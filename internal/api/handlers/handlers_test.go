package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/api/handlers"
	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/extract"
	"github.com/exexexll/figwork-knowledge/internal/ingest"
	"github.com/exexexll/figwork-knowledge/internal/models"
	"github.com/exexexll/figwork-knowledge/internal/retrieval"
	"github.com/exexexll/figwork-knowledge/internal/scan"
)

// memDB covers the handler paths: document registry plus a fixed chunk set
// for queries.
type memDB struct {
	docs   map[string]*models.Document
	chunks []models.ScoredChunk
}

func newMemDB() *memDB {
	return &memDB{docs: make(map[string]*models.Document)}
}

func (m *memDB) CreateDocument(ctx context.Context, doc *models.Document) error {
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *memDB) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, core.ErrDocumentNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memDB) ClaimDocument(ctx context.Context, id string) (bool, error) { return false, nil }
func (m *memDB) SetDocumentStatus(ctx context.Context, id, status, reason string) error {
	return nil
}
func (m *memDB) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error {
	return nil
}
func (m *memDB) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	return nil, nil
}
func (m *memDB) SearchChunks(ctx context.Context, tenantID, collectionID string, queryVec []float32, limit int) ([]models.ScoredChunk, error) {
	var out []models.ScoredChunk
	for _, ch := range m.chunks {
		if ch.TenantID == tenantID && ch.CollectionID == collectionID {
			out = append(out, ch)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (m *memDB) ListStuckDocuments(ctx context.Context, olderThan time.Duration, limit int) ([]models.Document, error) {
	return nil, nil
}

var _ core.DbClient = (*memDB)(nil)

type memObjects struct{}

func (memObjects) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	return "https://" + bucket + ".s3.us-east-2.amazonaws.com/" + key, nil
}
func (memObjects) DeleteFile(ctx context.Context, bucket, key string) error { return nil }
func (memObjects) GetFile(ctx context.Context, bucket, key string) ([]byte, error) {
	return nil, nil
}

type memEmbedder struct{}

func (memEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func newTestRouter(t *testing.T, db *memDB) (chi.Router, *ingest.Ingestor) {
	t.Helper()
	ing, err := ingest.NewIngestor(
		db, memObjects{}, memEmbedder{},
		extract.NewDocconvExtractor(), scan.NewScanner(), ingest.NewChunker(),
		ingest.Config{Workers: 1, QueueDepth: 4},
		zap.NewNop(),
	)
	require.NoError(t, err)
	t.Cleanup(ing.Release)

	engine := retrieval.NewEngine(db, memEmbedder{}, 5, zap.NewNop())
	ingestHandler := handlers.NewIngestHandler(db, ing, zap.NewNop())
	queryHandler := handlers.NewQueryHandler(engine, zap.NewNop())

	r := chi.NewRouter()
	r.Post("/api/ingest", ingestHandler.SubmitJob)
	r.Get("/api/documents/{documentID}", ingestHandler.GetDocument)
	r.Post("/api/query", queryHandler.Query)
	return r, ing
}

func TestSubmitJobAcceptsAndRegisters(t *testing.T) {
	db := newMemDB()
	router, ing := newTestRouter(t, db)

	body, _ := json.Marshal(models.IngestionJob{
		DocumentID:     "doc-1",
		SourceLocation: "https://docs-bucket.s3.us-east-2.amazonaws.com/acme/doc-1/file.txt",
		Format:         models.FormatText,
		TenantID:       "acme",
		CollectionID:   "handbook",
		FileName:       "file.txt",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body)))

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, 1, ing.QueueLen())

	doc, err := db.GetDocumentByID(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, doc.Status)
	require.Equal(t, "acme", doc.TenantID)
}

func TestSubmitJobValidatesPayload(t *testing.T) {
	db := newMemDB()
	router, ing := newTestRouter(t, db)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader("{not json")))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing tenant_id.
	body, _ := json.Marshal(models.IngestionJob{
		DocumentID:     "doc-1",
		SourceLocation: "https://docs-bucket.s3.us-east-2.amazonaws.com/k",
		Format:         models.FormatText,
		CollectionID:   "handbook",
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ingest", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, 0, ing.QueueLen())
}

func TestGetDocumentStatus(t *testing.T) {
	db := newMemDB()
	router, _ := newTestRouter(t, db)

	now := time.Now().UTC()
	require.NoError(t, db.CreateDocument(context.Background(), &models.Document{
		ID: "doc-1", TenantID: "acme", CollectionID: "handbook",
		Status: models.StatusReady, CreatedAt: now, UpdatedAt: now,
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/doc-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Equal(t, models.StatusReady, doc.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/no-such-doc", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryReturnsScopedResults(t *testing.T) {
	db := newMemDB()
	db.chunks = []models.ScoredChunk{
		{DocumentChunk: models.DocumentChunk{ID: "c1", TenantID: "acme", CollectionID: "handbook", Content: "vacation policy"}, Similarity: 0.9},
		{DocumentChunk: models.DocumentChunk{ID: "c2", TenantID: "globex", CollectionID: "handbook", Content: "other tenant"}, Similarity: 0.8},
	}
	router, _ := newTestRouter(t, db)

	body := `{"tenant_id":"acme","collection_id":"handbook","query":"vacation","top_k":3}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []models.ScoredChunk `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Equal(t, "c1", resp.Results[0].ID)

	// Scope fields are mandatory.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"query":"vacation"}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
