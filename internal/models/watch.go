package models

import "time"

// Watch is a user's bookmark on an item they want updates about.
type Watch struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}
