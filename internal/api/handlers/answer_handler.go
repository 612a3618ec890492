package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/supporthub/copilot/internal/api/response"
	"github.com/supporthub/copilot/internal/api/validation"
	"github.com/supporthub/copilot/internal/copiloterrors"
	"github.com/supporthub/copilot/internal/service"
)

// AnswerService defines the interface for answering support queries.
type AnswerService interface {
	Answer(ctx context.Context, query string) (service.AnswerResult, error)
}

// AnswerHandler handles HTTP requests for grounded query answering.
type AnswerHandler struct {
	service AnswerService
}

// NewAnswerHandler creates a new answer handler.
func NewAnswerHandler(service AnswerService) *AnswerHandler {
	return &AnswerHandler{service: service}
}

// AnswerRequest is the body for POST /v1/answers.
type AnswerRequest struct {
	Query string `json:"query" validate:"required,min=1,max=500,no_null_bytes"`
}

// AnswerQueryParams carries the query for GET /v1/answers.
type AnswerQueryParams struct {
	Query string `form:"query" validate:"required,min=1,max=500,no_null_bytes"`
}

// Create handles POST /v1/answers.
func (h *AnswerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		response.RespondBadRequest(w, "Invalid request body")

		return
	}

	if err := validation.ValidateStruct(req); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	h.answer(w, r, req.Query)
}

// Get handles GET /v1/answers with the query in the query string. Intended
// for quick manual checks; the POST form is the primary surface.
func (h *AnswerHandler) Get(w http.ResponseWriter, r *http.Request) {
	var params AnswerQueryParams

	if err := validation.ValidateAndDecodeQueryParams(r, &params); err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	h.answer(w, r, params.Query)
}

func (h *AnswerHandler) answer(w http.ResponseWriter, r *http.Request, query string) {
	result, err := h.service.Answer(r.Context(), query)
	if err != nil {
		switch {
		case errors.Is(err, copiloterrors.ErrInvalidQuery):
			response.RespondBadRequest(w, err.Error())
		case errors.Is(err, copiloterrors.ErrIndexEmpty):
			response.RespondServiceUnavailable(w, "No passages indexed; rebuild the index first")
		case errors.Is(err, copiloterrors.ErrEmbeddingUnavailable):
			response.RespondBadGateway(w, "Embedding provider unavailable")
		case errors.Is(err, copiloterrors.ErrGenerationUnavailable):
			response.RespondBadGateway(w, "Generation provider unavailable")
		default:
			response.RespondInternalServerError(w, "Query failed")
		}

		return
	}

	response.RespondJSON(w, http.StatusOK, result)
}
