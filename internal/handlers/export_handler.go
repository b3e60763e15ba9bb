package handlers

import (
	"encoding/csv"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/campusfound/backend/internal/services"
)

// ExportHandler streams admin CSV exports. Rows are written as they are
// produced; an error mid-stream is logged and truncates the download.
type ExportHandler struct {
	itemService services.ItemService
	userService services.UserService
}

func NewExportHandler(itemService services.ItemService, userService services.UserService) *ExportHandler {
	return &ExportHandler{
		itemService: itemService,
		userService: userService,
	}
}

func (h *ExportHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemService.ListAllItems(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	cw := beginCSV(w, "items")
	defer cw.Flush()

	if err := cw.Write([]string{
		"id", "type", "name", "category", "location", "status",
		"reporter_id", "reporter_name", "claimed_by",
		"total_claims", "pending_claims", "approved_claims",
		"date_reported", "resolved_date",
	}); err != nil {
		log.Printf("[ExportItems] %v", err)
		return
	}
	for _, item := range items {
		resolved := ""
		if item.ResolvedDate != nil {
			resolved = item.ResolvedDate.UTC().Format(time.RFC3339)
		}
		row := []string{
			item.ID, item.Type, item.Name, item.Category, item.Location, item.Status,
			item.ReporterID, item.ReporterName, item.ClaimedBy,
			strconv.Itoa(item.Stats.TotalClaims),
			strconv.Itoa(item.Stats.PendingClaims),
			strconv.Itoa(item.Stats.ApprovedClaims),
			item.DateReported.UTC().Format(time.RFC3339),
			resolved,
		}
		if err := cw.Write(row); err != nil {
			log.Printf("[ExportItems] %v", err)
			return
		}
	}
}

func (h *ExportHandler) Claims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.itemService.ListAllClaims(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	cw := beginCSV(w, "claims")
	defer cw.Flush()

	if err := cw.Write([]string{
		"id", "item_id", "claimant_id", "claimant_name", "status",
		"resolved_by", "response", "created_at", "resolved_at",
	}); err != nil {
		log.Printf("[ExportClaims] %v", err)
		return
	}
	for _, c := range claims {
		resolved := ""
		if c.ResolvedAt != nil {
			resolved = c.ResolvedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			c.ID, c.ItemID, c.ClaimantID, c.ClaimantName, c.Status,
			c.ResolvedBy, c.Response,
			c.CreatedAt.UTC().Format(time.RFC3339),
			resolved,
		}
		if err := cw.Write(row); err != nil {
			log.Printf("[ExportClaims] %v", err)
			return
		}
	}
}

func (h *ExportHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	cw := beginCSV(w, "users")
	defer cw.Flush()

	if err := cw.Write([]string{
		"id", "name", "email", "university_id", "role",
		"suspended", "banned", "strikes", "deleted", "created_at",
	}); err != nil {
		log.Printf("[ExportUsers] %v", err)
		return
	}
	for _, u := range users {
		row := []string{
			u.ID, u.Name, u.Email, u.UniversityID, u.Role,
			strconv.FormatBool(u.Suspended),
			strconv.FormatBool(u.Banned),
			strconv.Itoa(u.Strikes),
			strconv.FormatBool(u.Deleted),
			u.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			log.Printf("[ExportUsers] %v", err)
			return
		}
	}
}

func beginCSV(w http.ResponseWriter, name string) *csv.Writer {
	filename := fmt.Sprintf("%s-%s.csv", name, time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	return csv.NewWriter(w)
}
