package model

import "time"

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CategoryID int64     `json:"category_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Alias maps an alternate spelling or translation onto exactly one product.
type Alias struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// EntryStatus values are owned by the shopping package; the store only
// persists them.
type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntrySelected EntryStatus = "selected"
	EntryFound    EntryStatus = "found"
	EntryNotFound EntryStatus = "not_found"
)

type ListEntry struct {
	ID        int64       `json:"id"`
	ProductID int64       `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Status    EntryStatus `json:"status"`
	BatchID   string      `json:"batch_id"`
	Note      string      `json:"note"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// ListEntryView is a list entry joined with its catalog names for display
// and archiving.
type ListEntryView struct {
	ListEntry
	ProductName  string `json:"product_name"`
	CategoryName string `json:"category_name"`
	CategoryIcon string `json:"category_icon"`
}
