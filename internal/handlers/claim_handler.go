package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusfound/backend/internal/middleware"
	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

type ClaimHandler struct {
	itemService services.ItemService
}

func NewClaimHandler(itemService services.ItemService) *ClaimHandler {
	return &ClaimHandler{itemService: itemService}
}

func (h *ClaimHandler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req models.SubmitClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	claim, err := h.itemService.SubmitClaim(r.Context(), actor, chi.URLParam(r, "itemID"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(claim))
}

func (h *ClaimHandler) ListClaimsForItem(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	claims, err := h.itemService.ListClaimsForItem(r.Context(), actor, chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(claims))
}

// MyClaims lists the authenticated user's own claims.
func (h *ClaimHandler) MyClaims(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	claims, err := h.itemService.ListClaimsByClaimant(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(claims))
}

func (h *ClaimHandler) ApproveClaim(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	claim, err := h.itemService.ApproveClaim(r.Context(), actor, chi.URLParam(r, "claimID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(claim))
}

func (h *ClaimHandler) RejectClaim(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req models.ResolveClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	claim, err := h.itemService.RejectClaim(r.Context(), actor, chi.URLParam(r, "claimID"), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(claim))
}

// MarkReturned records the physical hand-over of an item to an approved
// or pending claimant.
func (h *ClaimHandler) MarkReturned(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	claim, err := h.itemService.MarkReturned(r.Context(), actor, chi.URLParam(r, "itemID"), chi.URLParam(r, "claimID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(claim))
}

func (h *ClaimHandler) ContactClaimant(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req models.ContactClaimantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	claim, err := h.itemService.ContactClaimant(r.Context(), actor, chi.URLParam(r, "claimID"), req.Message)
	if err != nil {
		log.Printf("[ContactClaimant] %v", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(claim))
}
