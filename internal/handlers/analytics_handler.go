package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/campusfound/backend/internal/models"
	"github.com/campusfound/backend/internal/services"
)

type AnalyticsHandler struct {
	analytics services.AnalyticsService
}

func NewAnalyticsHandler(analytics services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	report, err := h.analytics.Overview(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(report))
}

func (h *AnalyticsHandler) ItemsByStatus(w http.ResponseWriter, r *http.Request) {
	h.buckets(w, r, h.analytics.ItemsByStatus)
}

func (h *AnalyticsHandler) ItemsByType(w http.ResponseWriter, r *http.Request) {
	h.buckets(w, r, h.analytics.ItemsByType)
}

func (h *AnalyticsHandler) ItemsByCategory(w http.ResponseWriter, r *http.Request) {
	h.buckets(w, r, h.analytics.ItemsByCategory)
}

func (h *AnalyticsHandler) ClaimsByStatus(w http.ResponseWriter, r *http.Request) {
	h.buckets(w, r, h.analytics.ClaimsByStatus)
}

func (h *AnalyticsHandler) ItemsOverTime(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		bucket = services.BucketDay
	}

	out, err := h.analytics.ItemsOverTime(r.Context(), bucket)
	if err != nil {
		if err == services.ErrBadBucket {
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse(err.Error()))
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(out))
}

func (h *AnalyticsHandler) TopReporters(w http.ResponseWriter, r *http.Request) {
	out, err := h.analytics.TopReporters(r.Context(), queryLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(out))
}

func (h *AnalyticsHandler) MostClaimedItems(w http.ResponseWriter, r *http.Request) {
	out, err := h.analytics.MostClaimedItems(r.Context(), queryLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(out))
}

func (h *AnalyticsHandler) PopularTags(w http.ResponseWriter, r *http.Request) {
	out, err := h.analytics.PopularTags(r.Context(), queryLimit(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(out))
}

func (h *AnalyticsHandler) buckets(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) ([]models.BucketCount, error)) {
	out, err := fn(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(out))
}

func queryLimit(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 0
}
