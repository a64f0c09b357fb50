package subscription

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/auditgate-platform/auditgate/internal/api"
	"github.com/auditgate-platform/auditgate/internal/auth"
	"github.com/auditgate-platform/auditgate/internal/quota"
)

// Handler provides HTTP handlers for subscription management.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler creates a subscription Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// ActivateRequest is the POST /subscriptions payload. The transaction hash
// references the on-chain payment; verification happens out of band.
type ActivateRequest struct {
	Tier            string `json:"tier" validate:"required,oneof=subscriber premium"`
	TransactionHash string `json:"transaction_hash" validate:"required,min=32,max=128"`
}

// Activate purchases a paid tier for the authenticated requester.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	requester := auth.Requester(r.Context())
	if requester == "" {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	sub, err := h.svc.Activate(r.Context(), requester, quota.Tier(req.Tier), req.TransactionHash)
	if err != nil {
		slog.Error("activating subscription", "requester", requester, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusCreated, sub)
}

// Deactivate cancels the requester's active subscription.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	requester := auth.Requester(r.Context())
	if requester == "" {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if err := h.svc.Deactivate(r.Context(), requester); err != nil {
		slog.Error("deactivating subscription", "requester", requester, "error", err)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "subscription deactivated")
}

// Get returns the requester's current tier.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	requester := auth.Requester(r.Context())
	if requester == "" {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	tier, err := h.svc.ActiveTier(r.Context(), requester)
	if err != nil {
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{"tier": string(tier)})
}
