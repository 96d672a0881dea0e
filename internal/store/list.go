package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/pantry/internal/model"
)

type ListStore struct {
	db DBTX
}

func NewListStore(db DBTX) *ListStore {
	return &ListStore{db: db}
}

// WithTx returns a ListStore bound to tx.
func (s *ListStore) WithTx(tx *sql.Tx) *ListStore {
	return &ListStore{db: tx}
}

func scanEntry(row scanner) (*model.ListEntry, error) {
	var e model.ListEntry
	err := row.Scan(&e.ID, &e.ProductID, &e.Quantity, &e.Status, &e.BatchID, &e.Note, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanEntryView(row scanner) (*model.ListEntryView, error) {
	var v model.ListEntryView
	var categoryName, categoryIcon sql.NullString
	err := row.Scan(
		&v.ID, &v.ProductID, &v.Quantity, &v.Status, &v.BatchID, &v.Note, &v.CreatedAt, &v.UpdatedAt,
		&v.ProductName, &categoryName, &categoryIcon,
	)
	if err != nil {
		return nil, err
	}
	v.CategoryName = categoryName.String
	v.CategoryIcon = categoryIcon.String
	return &v, nil
}

const entryCols = `id, product_id, quantity, status, batch_id, note, created_at, updated_at`

const entryViewQuery = `SELECT e.id, e.product_id, e.quantity, e.status, e.batch_id, e.note, e.created_at, e.updated_at,
	p.name, c.name, c.icon
	FROM list_entries e
	JOIN products p ON p.id = e.product_id
	LEFT JOIN categories c ON c.id = p.category_id`

func (s *ListStore) GetByID(ctx context.Context, id int64) (*model.ListEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryCols+` FROM list_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// FindOpenByProduct returns the product's entry that has not been found yet.
func (s *ListStore) FindOpenByProduct(ctx context.Context, productID int64) (*model.ListEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryCols+` FROM list_entries WHERE product_id = ? AND status <> ?`,
		productID, model.EntryFound,
	)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open entry: %w", err)
	}
	return e, nil
}

// Upsert adds quantity to the product's open entry, stamping it with
// batchID, or creates a pending entry when none is open. It runs as a single
// statement against the open-entry unique index, so concurrent callers
// cannot create duplicates. merged reports whether an existing entry grew.
func (s *ListStore) Upsert(ctx context.Context, productID int64, quantity int, batchID, note string) (entry *model.ListEntry, merged bool, err error) {
	now := time.Now().UTC()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO list_entries (product_id, quantity, status, batch_id, note, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (product_id) WHERE status <> 'found' DO UPDATE SET
		     quantity   = list_entries.quantity + excluded.quantity,
		     batch_id   = excluded.batch_id,
		     note       = CASE WHEN excluded.note <> '' THEN excluded.note ELSE list_entries.note END,
		     updated_at = excluded.updated_at
		 RETURNING id, quantity`,
		productID, quantity, model.EntryPending, batchID, note, now, now,
	)
	var id int64
	var total int
	if err := row.Scan(&id, &total); err != nil {
		return nil, false, fmt.Errorf("upsert entry: %w", err)
	}
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if e == nil {
		return nil, false, fmt.Errorf("upsert entry: entry %d vanished", id)
	}
	// Stored quantities are at least 1, so a merge always exceeds the
	// quantity just added.
	return e, total != quantity, nil
}

// ListAll returns every entry on the list, unfinished first, grouped by
// category order.
func (s *ListStore) ListAll(ctx context.Context) ([]model.ListEntryView, error) {
	return s.listViews(ctx, entryViewQuery+`
		ORDER BY CASE e.status WHEN 'found' THEN 1 ELSE 0 END ASC,
		         c.sort_order ASC, p.name ASC, e.id ASC`)
}

// ListByStatus returns entries whose status is one of statuses.
func (s *ListStore) ListByStatus(ctx context.Context, statuses ...model.EntryStatus) ([]model.ListEntryView, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	return s.listViews(ctx, entryViewQuery+`
		WHERE e.status IN (`+placeholders(len(statuses))+`)
		ORDER BY e.id ASC`, args...)
}

func (s *ListStore) listViews(ctx context.Context, query string, args ...any) ([]model.ListEntryView, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var views []model.ListEntryView
	for rows.Next() {
		v, err := scanEntryView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

func (s *ListStore) Update(ctx context.Context, id int64, quantity int, note string) (*model.ListEntry, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE list_entries SET quantity = ?, note = ?, updated_at = ? WHERE id = ?`,
		quantity, note, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ListStore) SetStatus(ctx context.Context, id int64, status model.EntryStatus) (*model.ListEntry, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE list_entries SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set entry status: %w", err)
	}
	return s.GetByID(ctx, id)
}

// AddQuantity grows an entry by n.
func (s *ListStore) AddQuantity(ctx context.Context, id int64, n int) (*model.ListEntry, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE list_entries SET quantity = quantity + ?, updated_at = ? WHERE id = ?`,
		n, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("add entry quantity: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ListStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM list_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// DeleteByIDs removes the given entries and returns how many were deleted.
func (s *ListStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM list_entries WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("delete entries: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CountByStatus returns how many entries have each status.
func (s *ListStore) CountByStatus(ctx context.Context) (map[model.EntryStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM list_entries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.EntryStatus]int)
	for rows.Next() {
		var st model.EntryStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}
