package model

import "time"

// HistoryRecord is an immutable snapshot of a list entry taken when a
// shopping session is completed. Product and category names are copied so
// the record stays readable after catalog changes.
type HistoryRecord struct {
	ID           int64       `json:"id"`
	ProductID    *int64      `json:"product_id"`
	ProductName  string      `json:"product_name"`
	CategoryName string      `json:"category_name"`
	Quantity     int         `json:"quantity"`
	Status       EntryStatus `json:"status"`
	SessionID    string      `json:"session_id"`
	CompletedAt  time.Time   `json:"completed_at"`
}

// ShoppingSession groups the history records written by one archive.
type ShoppingSession struct {
	SessionID     string    `json:"session_id"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	ItemCount     int       `json:"item_count"`
	FoundCount    int       `json:"found_count"`
	NotFoundCount int       `json:"not_found_count"`
}
