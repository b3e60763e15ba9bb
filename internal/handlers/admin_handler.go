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

// AdminHandler groups the moderation surface: user management, item
// removal with strikes, and account deletion.
type AdminHandler struct {
	userService  services.UserService
	itemService  services.ItemService
	watchService services.WatchService
}

func NewAdminHandler(userService services.UserService, itemService services.ItemService, watchService services.WatchService) *AdminHandler {
	return &AdminHandler{
		userService:  userService,
		itemService:  itemService,
		watchService: watchService,
	}
}

type roleRequest struct {
	Role string `json:"role"`
}

type moderationRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(users))
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if req.Role != models.RoleStudent && req.Role != models.RoleAdmin {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Role must be student or admin"))
		return
	}

	user, err := h.userService.SetRole(r.Context(), actor, chi.URLParam(r, "userID"), req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(actor *models.User, userID, reason string) (*models.User, error) {
		return h.userService.SetSuspended(r.Context(), actor, userID, true, reason)
	})
}

func (h *AdminHandler) Unsuspend(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(actor *models.User, userID, reason string) (*models.User, error) {
		return h.userService.SetSuspended(r.Context(), actor, userID, false, reason)
	})
}

func (h *AdminHandler) Ban(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(actor *models.User, userID, reason string) (*models.User, error) {
		return h.userService.SetBanned(r.Context(), actor, userID, true, reason)
	})
}

func (h *AdminHandler) Unban(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(actor *models.User, userID, reason string) (*models.User, error) {
		return h.userService.SetBanned(r.Context(), actor, userID, false, reason)
	})
}

func (h *AdminHandler) moderate(w http.ResponseWriter, r *http.Request, apply func(actor *models.User, userID, reason string) (*models.User, error)) {
	actor := middleware.GetActor(r.Context())

	var req moderationRequest
	if r.Body != nil {
		// Reason is optional; a missing body is fine.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	user, err := apply(actor, chi.URLParam(r, "userID"), req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

// DeleteUser removes the account and detaches its items. Items survive
// as owner_deleted so in-flight claims can still be resolved by admins.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	userID := chi.URLParam(r, "userID")

	if err := h.userService.DeleteUser(r.Context(), actor, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	if n, err := h.itemService.ClearReporter(r.Context(), userID); err != nil {
		log.Printf("[DeleteUser] item detach failed user=%s: %v", userID, err)
	} else if n > 0 {
		log.Printf("[DeleteUser] detached %d items user=%s", n, userID)
	}
	if h.watchService != nil {
		if err := h.watchService.RemoveAllForUser(r.Context(), userID); err != nil {
			log.Printf("[DeleteUser] watch cleanup failed user=%s: %v", userID, err)
		}
	}

	writeJSON(w, http.StatusOK, models.NewMessageResponse("User deleted"))
}

// RemoveItem deletes an item on behalf of moderation and records a
// strike against its reporter.
func (h *AdminHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	itemID := chi.URLParam(r, "itemID")

	var req moderationRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	item, err := h.itemService.DeleteItem(r.Context(), actor, itemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if h.watchService != nil {
		if err := h.watchService.RemoveAllForItem(r.Context(), itemID); err != nil {
			log.Printf("[RemoveItem] watch cleanup failed item=%s: %v", itemID, err)
		}
	}

	if item.ReporterID != "" && item.ReporterID != actor.ID {
		if _, err := h.userService.AddStrike(r.Context(), actor, item.ReporterID, req.Reason); err != nil {
			log.Printf("[RemoveItem] strike failed user=%s: %v", item.ReporterID, err)
		}
	}

	writeJSON(w, http.StatusOK, models.NewMessageResponse("Item removed"))
}

// SetItemStatus is the administrative status override.
func (h *AdminHandler) SetItemStatus(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	switch req.Status {
	case models.StatusAvailable, models.StatusClaimPending, models.StatusReturned, models.StatusOwnerDeleted:
	default:
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Unknown item status"))
		return
	}

	item, err := h.itemService.SetItemStatus(r.Context(), actor, chi.URLParam(r, "itemID"), req.Status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(item))
}
