// Package retrieval is the read side: it embeds a free-text query and
// returns the most similar stored chunks for one tenant and collection.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/core"
	"github.com/exexexll/figwork-knowledge/internal/models"
)

// DefaultTopK is the retrieval breadth used when the caller passes k <= 0.
const DefaultTopK = 5

// Engine answers similarity queries. It uses the same embedding provider as
// ingestion so query and chunk vectors live in the same space, and never
// crosses tenant or collection boundaries.
type Engine struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	topK     int
	logger   *zap.Logger
}

func NewEngine(db core.DbClient, embedder core.EmbeddingProvider, topK int, logger *zap.Logger) *Engine {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Engine{db: db, embedder: embedder, topK: topK, logger: logger}
}

// Search returns up to k chunks ordered by descending similarity to query,
// scoped to the given tenant and collection. k <= 0 uses the configured
// default.
func (e *Engine) Search(ctx context.Context, tenantID, collectionID, query string, k int) ([]models.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if tenantID == "" || collectionID == "" {
		return nil, fmt.Errorf("tenant and collection are required")
	}
	if k <= 0 {
		k = e.topK
	}

	vecs, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingService, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one query", core.ErrEmbeddingService, len(vecs))
	}

	results, err := e.db.SearchChunks(ctx, tenantID, collectionID, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	e.logger.Debug("retrieval query served",
		zap.String("tenant_id", tenantID),
		zap.String("collection_id", collectionID),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)
	return results, nil
}
