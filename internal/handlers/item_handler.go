package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/campusfound/backend/internal/middleware"
	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

type ItemHandler struct {
	itemService  services.ItemService
	watchService services.WatchService
}

func NewItemHandler(itemService services.ItemService, watchService services.WatchService) *ItemHandler {
	return &ItemHandler{
		itemService:  itemService,
		watchService: watchService,
	}
}

func (h *ItemHandler) ReportItem(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req models.ReportItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	item, err := h.itemService.ReportItem(r.Context(), actor, &req)
	if err != nil {
		log.Printf("[ReportItem] %v", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(item))
}

func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	items, err := h.itemService.ListItems(r.Context(), services.ItemFilter{
		Type:     q.Get("type"),
		Status:   q.Get("status"),
		Category: q.Get("category"),
		Query:    q.Get("q"),
		Limit:    limit,
	})
	if err != nil {
		log.Printf("[ListItems] %v", err)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(items))
}

func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.itemService.GetItem(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(item))
}

func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	var req models.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	item, err := h.itemService.UpdateItem(r.Context(), actor, chi.URLParam(r, "itemID"), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(item))
}

func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	itemID := chi.URLParam(r, "itemID")

	if _, err := h.itemService.DeleteItem(r.Context(), actor, itemID); err != nil {
		writeServiceError(w, err)
		return
	}
	if h.watchService != nil {
		if err := h.watchService.RemoveAllForItem(r.Context(), itemID); err != nil {
			log.Printf("[DeleteItem] watch cleanup failed item=%s: %v", itemID, err)
		}
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Item deleted"))
}

// MyItems lists items the authenticated user reported.
func (h *ItemHandler) MyItems(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	items, err := h.itemService.ListItems(r.Context(), services.ItemFilter{})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	mine := make([]*models.Item, 0)
	for _, item := range items {
		if item.ReporterID == actor.ID {
			mine = append(mine, item)
		}
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(mine))
}
