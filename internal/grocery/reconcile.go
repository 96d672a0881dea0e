package grocery

import (
	"context"
	"fmt"

	"github.com/dukerupert/pantry/internal/model"
	"github.com/google/uuid"
)

// Source tells where a batch item's product came from.
type Source string

const (
	SourceCatalog Source = "catalog"
	SourceParser  Source = "parser"
)

// EntryUpserter merges a quantity into a product's open list entry or
// creates one.
type EntryUpserter interface {
	Upsert(ctx context.Context, productID int64, quantity int, batchID, note string) (*model.ListEntry, bool, error)
}

// ReconcileItem is a product ready to be put on the list.
type ReconcileItem struct {
	Product  *model.Product
	Quantity int
	Line     string
	Source   Source
}

type BatchItem struct {
	Entry       *model.ListEntry `json:"entry"`
	ProductName string           `json:"product_name"`
	Line        string           `json:"line"`
	Source      Source           `json:"source"`
	Merged      bool             `json:"merged"`
}

type Stats struct {
	Total     int `json:"total"`
	FromCache int `json:"from_cache"`
	FromAI    int `json:"from_ai"`
}

type BatchResult struct {
	BatchID string      `json:"batch_id"`
	Items   []BatchItem `json:"items"`
	Stats   Stats       `json:"stats"`
}

// Reconciler writes a batch of items to the list under one batch id.
type Reconciler struct {
	newID func() string
}

func NewReconciler() *Reconciler {
	return &Reconciler{newID: uuid.NewString}
}

// Reconcile upserts every item. An item whose product already has an open
// entry grows that entry and takes over its batch id.
func (r *Reconciler) Reconcile(ctx context.Context, entries EntryUpserter, items []ReconcileItem) (*BatchResult, error) {
	result := &BatchResult{BatchID: r.newID(), Items: make([]BatchItem, 0, len(items))}
	for _, it := range items {
		entry, merged, err := entries.Upsert(ctx, it.Product.ID, it.Quantity, result.BatchID, "")
		if err != nil {
			return nil, fmt.Errorf("reconcile %q: %w", it.Product.Name, err)
		}
		result.Items = append(result.Items, BatchItem{
			Entry:       entry,
			ProductName: it.Product.Name,
			Line:        it.Line,
			Source:      it.Source,
			Merged:      merged,
		})
		result.Stats.Total++
		if it.Source == SourceParser {
			result.Stats.FromAI++
		} else {
			result.Stats.FromCache++
		}
	}
	return result, nil
}
