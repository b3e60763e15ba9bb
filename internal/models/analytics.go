package models

// Analytics report shapes. All values are recomputed from live entity
// state at query time; nothing here is cached.

type OverviewReport struct {
	TotalItems     int64 `json:"total_items"`
	LostItems      int64 `json:"lost_items"`
	FoundItems     int64 `json:"found_items"`
	ReturnedItems  int64 `json:"returned_items"`
	TotalClaims    int64 `json:"total_claims"`
	PendingClaims  int64 `json:"pending_claims"`
	ApprovedClaims int64 `json:"approved_claims"`
	TotalUsers     int64 `json:"total_users"`
}

// BucketCount is a generic grouped count (by status, type, category or
// time bucket key).
type BucketCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type TopReporter struct {
	UserID       string `json:"user_id"`
	ReporterName string `json:"reporter_name"`
	ItemCount    int64  `json:"item_count"`
}

type TopClaimedItem struct {
	ItemID     string `json:"item_id"`
	Name       string `json:"name"`
	ClaimCount int64  `json:"claim_count"`
}

type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}
