// Package shopping moves list entries through shopping mode and archives
// finished entries into session history.
package shopping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/pantry/internal/database"
	"github.com/dukerupert/pantry/internal/grocery"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/store"
	"github.com/google/uuid"
)

var (
	ErrEntryNotFound   = errors.New("list entry not found")
	ErrHistoryNotFound = errors.New("history record not found")
	ErrSessionNotFound = errors.New("shopping session not found")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	// ErrProductGone is returned by Restore when the archived product no
	// longer exists by id and its name no longer resolves.
	ErrProductGone = errors.New("product no longer in catalog")
)

// Summary describes one completed shopping session.
type Summary struct {
	SessionID     string `json:"session_id"`
	ArchivedCount int    `json:"archived_count"`
	FoundCount    int    `json:"found_count"`
	NotFoundCount int    `json:"not_found_count"`
}

type Service struct {
	db       *sql.DB
	entries  *store.ListStore
	history  *store.HistoryStore
	products *store.ProductStore
	resolver *grocery.Resolver
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	products := store.NewProductStore(db)
	return &Service{
		db:       db,
		entries:  store.NewListStore(db),
		history:  store.NewHistoryStore(db),
		products: products,
		resolver: grocery.NewResolver(products),
		logger:   logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// OpenEntries returns everything on the list, including found entries that
// have not been archived yet.
func (s *Service) OpenEntries(ctx context.Context) ([]model.ListEntryView, error) {
	return s.entries.ListAll(ctx)
}

// UpdateStatus moves an entry to status. Reopening a found entry while the
// product already has another open entry folds the found one into it.
func (s *Service) UpdateStatus(ctx context.Context, entryID int64, status Status) (*model.ListEntry, error) {
	var updated *model.ListEntry
	err := database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		entries := s.entries.WithTx(tx)
		e, err := entries.GetByID(ctx, entryID)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrEntryNotFound
		}
		from := Status(e.Status)
		if err := Transition(from, status); err != nil {
			return err
		}

		if from == StatusFound && status != StatusFound {
			open, err := entries.FindOpenByProduct(ctx, e.ProductID)
			if err != nil {
				return err
			}
			if open != nil {
				if _, err := entries.AddQuantity(ctx, open.ID, e.Quantity); err != nil {
					return err
				}
				if err := entries.Delete(ctx, e.ID); err != nil {
					return err
				}
				s.logger.Debug("reopened entry folded", "entry_id", e.ID, "into", open.ID)
				updated, err = entries.SetStatus(ctx, open.ID, status.Entry())
				return err
			}
		}

		updated, err = entries.SetStatus(ctx, e.ID, status.Entry())
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateEntry changes the quantity and note of an entry.
func (s *Service) UpdateEntry(ctx context.Context, id int64, quantity int, note string) (*model.ListEntry, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrEntryNotFound
	}
	return s.entries.Update(ctx, id, quantity, note)
}

func (s *Service) DeleteEntry(ctx context.Context, id int64) error {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return ErrEntryNotFound
	}
	return s.entries.Delete(ctx, id)
}

// CompleteShopping archives every found and not found entry under a new
// session id and removes them from the list, all in one transaction.
// Pending and selected entries stay. With nothing to archive it returns a
// zero Summary and writes nothing.
func (s *Service) CompleteShopping(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	err := database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		entries := s.entries.WithTx(tx)
		done, err := entries.ListByStatus(ctx, model.EntryFound, model.EntryNotFound)
		if err != nil {
			return err
		}
		if len(done) == 0 {
			return nil
		}

		sessionID := s.newID()
		completedAt := s.now().UTC()
		records := make([]model.HistoryRecord, len(done))
		ids := make([]int64, len(done))
		for i, e := range done {
			productID := e.ProductID
			records[i] = model.HistoryRecord{
				ProductID:    &productID,
				ProductName:  e.ProductName,
				CategoryName: e.CategoryName,
				Quantity:     e.Quantity,
				Status:       e.Status,
				SessionID:    sessionID,
				CompletedAt:  completedAt,
			}
			ids[i] = e.ID
			if e.Status == model.EntryFound {
				summary.FoundCount++
			} else {
				summary.NotFoundCount++
			}
		}

		if err := s.history.WithTx(tx).InsertBatch(ctx, records); err != nil {
			return fmt.Errorf("archive entries: %w", err)
		}
		n, err := entries.DeleteByIDs(ctx, ids)
		if err != nil {
			return fmt.Errorf("archive entries: %w", err)
		}
		if n != int64(len(ids)) {
			return fmt.Errorf("archive entries: deleted %d of %d", n, len(ids))
		}
		summary.SessionID = sessionID
		summary.ArchivedCount = len(done)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if summary.ArchivedCount > 0 {
		s.logger.Info("shopping completed", "session_id", summary.SessionID,
			"archived", summary.ArchivedCount, "found", summary.FoundCount, "not_found", summary.NotFoundCount)
	}
	return summary, nil
}

// Restore puts an archived item back on the list, merging into the
// product's open entry if there is one. When the archived product is gone,
// its stored name is resolved against the catalog like list input. The
// history record is kept.
func (s *Service) Restore(ctx context.Context, historyID int64) (*model.ListEntry, error) {
	rec, err := s.history.GetByID(ctx, historyID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrHistoryNotFound
	}

	var p *model.Product
	if rec.ProductID != nil {
		if p, err = s.products.GetByID(ctx, *rec.ProductID); err != nil {
			return nil, err
		}
	}
	if p == nil {
		if p, err = s.resolver.Resolve(ctx, rec.ProductName); err != nil {
			return nil, err
		}
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrProductGone, rec.ProductName)
	}

	entry, _, err := s.entries.Upsert(ctx, p.ID, rec.Quantity, s.newID(), "")
	if err != nil {
		return nil, fmt.Errorf("restore entry: %w", err)
	}
	return entry, nil
}

// Sessions lists past sessions, newest first.
func (s *Service) Sessions(ctx context.Context, limit int) ([]model.ShoppingSession, error) {
	return s.history.Sessions(ctx, limit)
}

func (s *Service) SessionRecords(ctx context.Context, sessionID string) ([]model.HistoryRecord, error) {
	records, err := s.history.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrSessionNotFound
	}
	return records, nil
}
