package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeServiceError maps service sentinel errors onto HTTP statuses.
// Anything unrecognized becomes a 500 with a generic message.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrClaimNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrWatchNotFound),
		errors.Is(err, services.ErrNotificationNotFound),
		errors.Is(err, services.ErrImageNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse(err.Error()))
	case errors.Is(err, services.ErrForbidden):
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse(err.Error()))
	case errors.Is(err, services.ErrItemNotAvailable),
		errors.Is(err, services.ErrNotClaimable),
		errors.Is(err, services.ErrSelfClaim),
		errors.Is(err, services.ErrDuplicateClaim),
		errors.Is(err, services.ErrClaimResolved),
		errors.Is(err, services.ErrCategoryExists),
		errors.Is(err, services.ErrCategoryInUse),
		errors.Is(err, services.ErrAlreadyWatched),
		errors.Is(err, services.ErrEmailExists),
		errors.Is(err, services.ErrUniversityIDExists):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse(err.Error()))
	case errors.Is(err, services.ErrInvalidImage):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Internal server error"))
	}
}
