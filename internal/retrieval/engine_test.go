package retrieval_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/models"
	"github.com/exexexll/figwork-knowledge/internal/retrieval"
)

// stubDB serves SearchChunks from a fixed chunk slice with real cosine
// ranking; the other DbClient methods are unused by the engine.
type stubDB struct {
	chunks []models.DocumentChunk
}

func (s *stubDB) CreateDocument(ctx context.Context, doc *models.Document) error { return nil }
func (s *stubDB) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	return nil, core.ErrDocumentNotFound
}
func (s *stubDB) ClaimDocument(ctx context.Context, id string) (bool, error) { return false, nil }
func (s *stubDB) SetDocumentStatus(ctx context.Context, id, status, reason string) error {
	return nil
}
func (s *stubDB) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []models.DocumentChunk) error {
	return nil
}
func (s *stubDB) GetChunksByDocument(ctx context.Context, documentID string) ([]models.DocumentChunk, error) {
	return nil, nil
}
func (s *stubDB) ListStuckDocuments(ctx context.Context, olderThan time.Duration, limit int) ([]models.Document, error) {
	return nil, nil
}

func (s *stubDB) SearchChunks(ctx context.Context, tenantID, collectionID string, queryVec []float32, limit int) ([]models.ScoredChunk, error) {
	var out []models.ScoredChunk
	for _, ch := range s.chunks {
		if ch.TenantID != tenantID || ch.CollectionID != collectionID {
			continue
		}
		out = append(out, models.ScoredChunk{DocumentChunk: ch, Similarity: cosine(queryVec, ch.Embedding)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ core.DbClient = (*stubDB)(nil)

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// stubEmbedder maps text to a letter-frequency vector, so identical texts
// embed identically and unrelated texts point elsewhere.
type stubEmbedder struct {
	fail error
}

func (s *stubEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = embed(text)
	}
	return out, nil
}

func embed(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v
}

func chunk(id, tenant, collection, content string) models.DocumentChunk {
	return models.DocumentChunk{
		ID:           id,
		DocumentID:   "doc-" + id,
		TenantID:     tenant,
		CollectionID: collection,
		Content:      content,
		Embedding:    embed(content),
	}
}

func TestSearchRanksVerbatimChunkFirst(t *testing.T) {
	db := &stubDB{chunks: []models.DocumentChunk{
		chunk("1", "acme", "handbook", "vacation policy allows twenty days per year"),
		chunk("2", "acme", "handbook", "expense reports are filed monthly through the portal"),
		chunk("3", "acme", "handbook", "the office closes between christmas and new year"),
	}}
	engine := retrieval.NewEngine(db, &stubEmbedder{}, 5, zap.NewNop())

	results, err := engine.Search(context.Background(), "acme", "handbook",
		"expense reports are filed monthly through the portal", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "2", results[0].ID)
	require.InDelta(t, 1.0, results[0].Similarity, 1e-4)

	// Descending similarity order.
	for i := 1; i < len(results); i++ {
		require.LessOrEqual(t, results[i].Similarity, results[i-1].Similarity)
	}
}

func TestSearchScopedToTenantAndCollection(t *testing.T) {
	db := &stubDB{chunks: []models.DocumentChunk{
		chunk("1", "acme", "handbook", "shared onboarding checklist for new hires"),
		chunk("2", "globex", "handbook", "shared onboarding checklist for new hires"),
		chunk("3", "acme", "legal", "shared onboarding checklist for new hires"),
	}}
	engine := retrieval.NewEngine(db, &stubEmbedder{}, 5, zap.NewNop())

	results, err := engine.Search(context.Background(), "acme", "handbook", "onboarding checklist", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "1", results[0].ID)
	require.Equal(t, "acme", results[0].TenantID)
	require.Equal(t, "handbook", results[0].CollectionID)
}

func TestSearchDefaultTopK(t *testing.T) {
	var chunks []models.DocumentChunk
	for i := 0; i < 8; i++ {
		chunks = append(chunks, chunk(fmt.Sprintf("%d", i), "acme", "handbook",
			fmt.Sprintf("distinct content number %d about policies", i)))
	}
	engine := retrieval.NewEngine(&stubDB{chunks: chunks}, &stubEmbedder{}, 0, zap.NewNop())

	// k <= 0 falls back to the engine default.
	results, err := engine.Search(context.Background(), "acme", "handbook", "policies", 0)
	require.NoError(t, err)
	require.Len(t, results, retrieval.DefaultTopK)
}

func TestSearchValidation(t *testing.T) {
	engine := retrieval.NewEngine(&stubDB{}, &stubEmbedder{}, 5, zap.NewNop())

	_, err := engine.Search(context.Background(), "acme", "handbook", "   ", 5)
	require.Error(t, err)

	_, err = engine.Search(context.Background(), "", "handbook", "query", 5)
	require.Error(t, err)

	_, err = engine.Search(context.Background(), "acme", "", "query", 5)
	require.Error(t, err)
}

func TestSearchEmbedFailure(t *testing.T) {
	engine := retrieval.NewEngine(&stubDB{}, &stubEmbedder{fail: errors.New("backend down")}, 5, zap.NewNop())

	_, err := engine.Search(context.Background(), "acme", "handbook", "query", 5)
	require.ErrorIs(t, err, core.ErrEmbeddingService)
}
