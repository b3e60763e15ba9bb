package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusfound/backend/internal/middleware"
	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

type WatchHandler struct {
	watchService services.WatchService
}

func NewWatchHandler(watchService services.WatchService) *WatchHandler {
	return &WatchHandler{watchService: watchService}
}

func (h *WatchHandler) Add(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	watch, err := h.watchService.AddWatch(r.Context(), actor.ID, chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(watch))
}

func (h *WatchHandler) Remove(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	if err := h.watchService.RemoveWatch(r.Context(), actor.ID, chi.URLParam(r, "itemID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Watch removed"))
}

func (h *WatchHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	watches, err := h.watchService.ListForUser(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(watches))
}
