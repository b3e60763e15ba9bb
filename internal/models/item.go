package models

import (
	"strings"
	"time"
)

// Item types.
const (
	ItemLost  = "lost"
	ItemFound = "found"
)

// Item statuses. An item moves available -> claim_pending while claims are
// open, back to available when the last pending claim clears, and to
// returned (terminal) when a claim is approved. owner_deleted is set only
// by admin user deletion.
const (
	StatusAvailable    = "available"
	StatusClaimPending = "claim_pending"
	StatusReturned     = "returned"
	StatusOwnerDeleted = "owner_deleted"
)

// MaxSearchTags caps the derived search tag list per item.
const MaxSearchTags = 10

type Item struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	PhotoURLs   []string `json:"photo_urls,omitempty"`
	Status      string   `json:"status"`

	// Reporter reference; cleared when the owning account is deleted.
	ReporterID    string `json:"reporter_id,omitempty"`
	ReporterName  string `json:"reporter_name,omitempty"`
	ReporterEmail string `json:"reporter_email,omitempty"`
	ReporterRole  string `json:"reporter_role,omitempty"`

	ClaimedBy    string     `json:"claimed_by,omitempty"`
	ResolvedDate *time.Time `json:"resolved_date,omitempty"`

	SearchTags []string      `json:"search_tags,omitempty"`
	Stats      ItemStats     `json:"stats"`
	LastClaim  *ClaimSummary `json:"last_claim,omitempty"`

	DateReported time.Time `json:"date_reported"`
}

// ItemStats is a derived cache recomputed from the item's claims; it is
// never authoritative and never consulted for authorization.
type ItemStats struct {
	TotalClaims    int       `json:"total_claims"`
	PendingClaims  int       `json:"pending_claims"`
	ApprovedClaims int       `json:"approved_claims"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ClaimSummary is a denormalized snapshot of the most recent claim.
type ClaimSummary struct {
	ClaimID      string    `json:"claim_id"`
	ClaimantName string    `json:"claimant_name"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReportItemRequest struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	PhotoURLs   []string `json:"photo_urls"`
}

type UpdateItemRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	PhotoURLs   []string `json:"photo_urls"`
}

func (r *ReportItemRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Type != ItemLost && r.Type != ItemFound {
		errors["type"] = "Type must be lost or found"
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Item name is required"
	}
	if strings.TrimSpace(r.Category) == "" {
		errors["category"] = "Category is required"
	}
	if strings.TrimSpace(r.Location) == "" {
		errors["location"] = "Location is required"
	}

	return errors
}

func (r *UpdateItemRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Item name is required"
	}
	if strings.TrimSpace(r.Category) == "" {
		errors["category"] = "Category is required"
	}

	return errors
}

// BuildSearchTags derives lower-cased, deduplicated tokens from the item
// name and description, capped at MaxSearchTags.
func BuildSearchTags(name, description string) []string {
	seen := make(map[string]struct{})
	tags := make([]string, 0, MaxSearchTags)

	for _, raw := range strings.Fields(name + " " + description) {
		tok := strings.ToLower(strings.Trim(raw, ".,;:!?\"'()[]"))
		if len(tok) < 2 {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tags = append(tags, tok)
		if len(tags) >= MaxSearchTags {
			break
		}
	}

	return tags
}
