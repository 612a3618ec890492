package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/supporthub/copilot/internal/api/response"
	"github.com/supporthub/copilot/internal/copiloterrors"
	"github.com/supporthub/copilot/internal/service"
)

// IndexerService defines the interface for index rebuilds and stats.
type IndexerService interface {
	Rebuild(ctx context.Context) (service.RebuildResult, error)
	Stats() (service.IndexStats, error)
}

// IndexHandler handles HTTP requests for index management.
type IndexHandler struct {
	service IndexerService
}

// NewIndexHandler creates a new index handler.
func NewIndexHandler(service IndexerService) *IndexHandler {
	return &IndexHandler{service: service}
}

// RebuildResponse is the response for POST /v1/index/rebuild.
type RebuildResponse struct {
	Passages int     `json:"passages"`
	TookMs   float64 `json:"tookMs"` //nolint:tagliatelle // API contract camelCase
}

// Rebuild handles POST /v1/index/rebuild. The call blocks until the rebuild
// finishes; concurrent calls share the in-flight rebuild.
func (h *IndexHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Rebuild(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, copiloterrors.ErrIndexEmpty):
			response.RespondUnprocessableEntity(w, "Corpus contains no passages")
		case errors.Is(err, copiloterrors.ErrEmbeddingUnavailable):
			response.RespondBadGateway(w, "Embedding provider unavailable")
		default:
			response.RespondInternalServerError(w, "Index rebuild failed")
		}

		return
	}

	response.RespondJSON(w, http.StatusOK, RebuildResponse{
		Passages: result.Passages,
		TookMs:   float64(result.Took.Microseconds()) / 1000,
	})
}

// Stats handles GET /v1/index/stats.
func (h *IndexHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.service.Stats()
	if err != nil {
		if errors.Is(err, copiloterrors.ErrIndexEmpty) {
			response.RespondNotFound(w, "Index not built yet")

			return
		}

		response.RespondInternalServerError(w, "Failed to read index stats")

		return
	}

	response.RespondJSON(w, http.StatusOK, stats)
}
