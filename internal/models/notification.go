package models

import "time"

// Notification kinds.
const (
	NotifyNewClaim        = "new_claim"
	NotifyClaimApproved   = "claim_approved"
	NotifyClaimRejected   = "claim_rejected"
	NotifyMessageReceived = "message_received"
)

// MaxNotifications caps the per-user notification list; appending past the
// cap evicts the oldest entries.
const MaxNotifications = 50

// MaxAuditEntries caps the per-user admin audit list.
const MaxAuditEntries = 100

// Notification is one entry in a user's embedded, newest-first list.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	ItemID    string    `json:"item_id,omitempty"`
	ClaimID   string    `json:"claim_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
