package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/pantry/internal/model"
)

// ParserLogStore persists one row per external parser call.
type ParserLogStore struct {
	db DBTX
}

func NewParserLogStore(db DBTX) *ParserLogStore {
	return &ParserLogStore{db: db}
}

func (s *ParserLogStore) Create(ctx context.Context, call model.ParserCall) error {
	createdAt := call.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO parser_calls (input_text, success, error_kind, input_tokens, output_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		call.InputText, call.Success, call.ErrorKind, call.InputTokens, call.OutputTokens, call.LatencyMS, createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert parser call: %w", err)
	}
	return nil
}

func (s *ParserLogStore) ListRecent(ctx context.Context, limit int) ([]model.ParserCall, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_text, success, error_kind, input_tokens, output_tokens, latency_ms, created_at
		 FROM parser_calls ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list parser calls: %w", err)
	}
	defer rows.Close()

	var calls []model.ParserCall
	for rows.Next() {
		var c model.ParserCall
		if err := rows.Scan(&c.ID, &c.InputText, &c.Success, &c.ErrorKind, &c.InputTokens, &c.OutputTokens, &c.LatencyMS, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan parser call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}
