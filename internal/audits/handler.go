// Package audits provides the HTTP handlers for submitting audits and
// browsing their results.
package audits

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/auditgate-platform/auditgate/internal/api"
	"github.com/auditgate-platform/auditgate/internal/auth"
	"github.com/auditgate-platform/auditgate/internal/history"
	"github.com/auditgate-platform/auditgate/internal/pipeline"
)

// Handler provides HTTP handlers over the pipeline and audit history.
type Handler struct {
	pipe     *pipeline.Pipeline
	records  *history.Repository
	validate *validator.Validate
}

// NewHandler creates an audits Handler. records may be nil when history
// persistence is not configured.
func NewHandler(pipe *pipeline.Pipeline, records *history.Repository) *Handler {
	return &Handler{
		pipe:     pipe,
		records:  records,
		validate: validator.New(),
	}
}

// SubmitRequest is the POST /audits payload.
type SubmitRequest struct {
	Subject      string `json:"subject" validate:"required,min=3,max=128"`
	Source       string `json:"source" validate:"max=262144"`
	ForceRefresh bool   `json:"force_refresh"`
}

// Submit runs one audit submission through the pipeline and maps its terminal
// outcome to an HTTP status.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	requester := auth.Requester(r.Context())
	if requester == "" {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	result := h.pipe.Submit(r.Context(), pipeline.Request{
		Requester:    requester,
		Subject:      req.Subject,
		Source:       req.Source,
		ForceRefresh: req.ForceRefresh,
	})

	switch result.Outcome {
	case pipeline.OutcomeCompleted, pipeline.OutcomeCached:
		api.JSON(w, http.StatusOK, result)
	case pipeline.OutcomeQuotaExceeded:
		w.Header().Set("Retry-After", "3600")
		api.JSON(w, http.StatusTooManyRequests, result)
	case pipeline.OutcomeAnalysisFailed:
		api.JSON(w, http.StatusBadGateway, result)
	default:
		api.HandleError(w, api.ErrBadRequest)
	}
}

// GetQuota returns the authenticated requester's current quota snapshot.
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	requester := auth.Requester(r.Context())
	if requester == "" {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	api.JSON(w, http.StatusOK, h.pipe.Status(requester))
}

// ListAudits returns the requester's persisted audit history.
func (h *Handler) ListAudits(w http.ResponseWriter, r *http.Request) {
	requester := auth.Requester(r.Context())
	if requester == "" {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	if h.records == nil {
		api.HandleError(w, api.NewNotFoundError("audit history is not configured"))
		return
	}

	params := parseListParams(r)
	records, total, err := h.records.ListByRequester(r.Context(), requester, params)
	if err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, records, total, params.Page, params.PageSize)
}

// ListContractAudits returns all persisted audits of one contract, across
// requesters.
func (h *Handler) ListContractAudits(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")
	if subject == "" {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if h.records == nil {
		api.HandleError(w, api.NewNotFoundError("audit history is not configured"))
		return
	}

	params := parseListParams(r)
	records, total, err := h.records.ListBySubject(r.Context(), subject, params)
	if err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONPaginated(w, http.StatusOK, records, total, params.Page, params.PageSize)
}

// CacheStats returns result cache occupancy and hit counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, h.pipe.CacheStats())
}

func parseListParams(r *http.Request) history.ListParams {
	params := history.DefaultListParams()

	if p := r.URL.Query().Get("page"); p != "" {
		if page, err := strconv.Atoi(p); err == nil && page > 0 {
			params.Page = page
		}
	}
	if ps := r.URL.Query().Get("page_size"); ps != "" {
		if pageSize, err := strconv.Atoi(ps); err == nil && pageSize > 0 && pageSize <= 100 {
			params.PageSize = pageSize
		}
	}
	return params
}
