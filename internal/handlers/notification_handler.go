package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campusfound/backend/internal/middleware"
	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

type NotificationHandler struct {
	userService services.UserService
}

func NewNotificationHandler(userService services.UserService) *NotificationHandler {
	return &NotificationHandler{userService: userService}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	notifications, err := h.userService.ListNotifications(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(notifications))
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	err := h.userService.MarkNotificationRead(r.Context(), actor.ID, chi.URLParam(r, "notificationID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Notification marked read"))
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	if err := h.userService.MarkAllNotificationsRead(r.Context(), actor.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("All notifications marked read"))
}

func (h *NotificationHandler) Clear(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	if err := h.userService.ClearNotifications(r.Context(), actor.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewMessageResponse("Notifications cleared"))
}
