package models

import "time"

// Collect marks a CMS item as saved by a user. (user_id, item_id) is unique;
// adding the same item twice is a no-op.
type Collect struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	ItemID    int64     `json:"itemId"`
	CreatedAt time.Time `json:"createdAt"`
}
