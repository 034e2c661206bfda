package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/exexexll/figwork-knowledge/internal/models"
	"github.com/exexexll/figwork-knowledge/internal/retrieval"
)

// QueryHandler serves similarity queries for the conversational agent.
type QueryHandler struct {
	engine *retrieval.Engine
	logger *zap.Logger
}

func NewQueryHandler(engine *retrieval.Engine, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{engine: engine, logger: logger}
}

type queryRequest struct {
	TenantID     string `json:"tenant_id"`
	CollectionID string `json:"collection_id"`
	Query        string `json:"query"`
	TopK         int    `json:"top_k"`
}

type queryResponse struct {
	Results []models.ScoredChunk `json:"results"`
}

// Query embeds the request text and returns the top-K most similar chunks in
// the caller's tenant/collection scope.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid query payload", http.StatusBadRequest)
		return
	}
	if req.TenantID == "" || req.CollectionID == "" || req.Query == "" {
		http.Error(w, "tenant_id, collection_id and query are required", http.StatusBadRequest)
		return
	}

	results, err := h.engine.Search(r.Context(), req.TenantID, req.CollectionID, req.Query, req.TopK)
	if err != nil {
		h.logger.Error("retrieval query failed", zap.String("tenant_id", req.TenantID), zap.Error(err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []models.ScoredChunk{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(queryResponse{Results: results})
}
