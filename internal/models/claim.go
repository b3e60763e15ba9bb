package models

import (
	"strings"
	"time"
)

// Claim statuses. A claim is pending until the item's reporter (or an
// admin) resolves it; resolved claims are immutable except for appended
// contact history.
const (
	ClaimPending  = "pending"
	ClaimApproved = "approved"
	ClaimRejected = "rejected"
)

// SummaryMessageLen is the truncation length for the message stored in an
// item's last-claim summary.
const SummaryMessageLen = 120

type Claim struct {
	ID           string `json:"id"`
	ItemID       string `json:"item_id"`
	ClaimantID   string `json:"claimant_id"`
	ClaimantName string `json:"claimant_name,omitempty"`
	// OwnerID is the item's reporter at claim time.
	OwnerID string `json:"owner_id,omitempty"`

	Message          string `json:"message"`
	ProofDescription string `json:"proof_description,omitempty"`
	ContactInfo      string `json:"contact_info,omitempty"`
	Status           string `json:"status"`

	ContactHistory []ContactEntry `json:"contact_history,omitempty"`

	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	Response   string     `json:"response,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ContactEntry is one append-only message in a claim's contact log.
type ContactEntry struct {
	Message   string    `json:"message"`
	SenderID  string    `json:"sender_id"`
	Delivered bool      `json:"delivered"`
	CreatedAt time.Time `json:"created_at"`
}

type SubmitClaimRequest struct {
	Message          string `json:"message"`
	ProofDescription string `json:"proof_description"`
	ContactInfo      string `json:"contact_info"`
}

type ResolveClaimRequest struct {
	Reason string `json:"reason"`
}

type ContactClaimantRequest struct {
	Message string `json:"message"`
}

func (r *SubmitClaimRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Message) == "" {
		errors["message"] = "Message is required"
	}

	return errors
}

func (r *ContactClaimantRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Message) == "" {
		errors["message"] = "Message is required"
	}

	return errors
}

// Summarize builds the denormalized last-claim snapshot for an item.
func (c *Claim) Summarize() *ClaimSummary {
	msg := c.Message
	if len(msg) > SummaryMessageLen {
		msg = msg[:SummaryMessageLen]
	}
	return &ClaimSummary{
		ClaimID:      c.ID,
		ClaimantName: c.ClaimantName,
		Status:       c.Status,
		Message:      msg,
		CreatedAt:    c.CreatedAt,
	}
}
