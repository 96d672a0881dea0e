package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/pantry/internal/model"
)

type HistoryStore struct {
	db DBTX
}

func NewHistoryStore(db DBTX) *HistoryStore {
	return &HistoryStore{db: db}
}

// WithTx returns a HistoryStore bound to tx.
func (s *HistoryStore) WithTx(tx *sql.Tx) *HistoryStore {
	return &HistoryStore{db: tx}
}

func scanHistory(row scanner) (*model.HistoryRecord, error) {
	var r model.HistoryRecord
	var productID sql.NullInt64
	err := row.Scan(&r.ID, &productID, &r.ProductName, &r.CategoryName, &r.Quantity, &r.Status, &r.SessionID, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if productID.Valid {
		id := productID.Int64
		r.ProductID = &id
	}
	return &r, nil
}

const historyCols = `id, product_id, product_name, category_name, quantity, status, session_id, completed_at`

// InsertBatch writes records in order. Callers archive inside a transaction
// so the batch lands all at once.
func (s *HistoryStore) InsertBatch(ctx context.Context, records []model.HistoryRecord) error {
	const q = `INSERT INTO history_records (product_id, product_name, category_name, quantity, status, session_id, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	for i, r := range records {
		var productID any
		if r.ProductID != nil {
			productID = *r.ProductID
		}
		_, err := s.db.ExecContext(ctx, q,
			productID, r.ProductName, r.CategoryName, r.Quantity, r.Status, r.SessionID, r.CompletedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert history record %d: %w", i, err)
		}
	}
	return nil
}

func (s *HistoryStore) GetByID(ctx context.Context, id int64) (*model.HistoryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+historyCols+` FROM history_records WHERE id = ?`, id)
	r, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history record: %w", err)
	}
	return r, nil
}

func (s *HistoryStore) ListBySession(ctx context.Context, sessionID string) ([]model.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+historyCols+` FROM history_records WHERE session_id = ? ORDER BY category_name ASC, product_name ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list session records: %w", err)
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		r, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history record: %w", err)
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// Sessions reconstructs shopping sessions by grouping records on their
// session id, most recent first. A limit of zero or less returns all.
func (s *HistoryStore) Sessions(ctx context.Context, limit int) ([]model.ShoppingSession, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id,
		        MIN(completed_at), MAX(completed_at),
		        COUNT(*),
		        COALESCE(SUM(CASE WHEN status = 'found' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = 'not_found' THEN 1 ELSE 0 END), 0)
		 FROM history_records
		 GROUP BY session_id
		 ORDER BY MAX(completed_at) DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.ShoppingSession
	for rows.Next() {
		var ss model.ShoppingSession
		var started, completed string
		if err := rows.Scan(&ss.SessionID, &started, &completed, &ss.ItemCount, &ss.FoundCount, &ss.NotFoundCount); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if ss.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if ss.CompletedAt, err = parseTime(completed); err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}
