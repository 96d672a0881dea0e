package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dukerupert/pantry/internal/database"
	"github.com/dukerupert/pantry/internal/grocery"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/parser"
	"github.com/dukerupert/pantry/internal/shopping"
	"github.com/dukerupert/pantry/internal/store"
)

type stubParser struct {
	items []parser.Item
	err   error
}

func (p *stubParser) Parse(context.Context, []string) ([]parser.Item, error) {
	return p.items, p.err
}

func setupServer(t *testing.T, p grocery.Parser) (http.Handler, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, Config{Parser: p, MaxLines: 10, ParseRateLimit: 3}, logger)
	return srv.Router(), db
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func seed(t *testing.T, db *sql.DB, name, category string) *model.Product {
	t.Helper()
	ctx := context.Background()
	cat, _ := store.NewCategoryStore(db).FindByName(ctx, category)
	p, err := store.NewProductStore(db).Create(ctx, name, cat.ID)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func TestHealth(t *testing.T) {
	h, db := setupServer(t, &stubParser{})
	p := seed(t, db, "Lait", "Crèmerie")
	if _, _, err := store.NewListStore(db).Upsert(context.Background(), p.ID, 1, "b", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rec := do(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[healthResponse](t, rec)
	if body.Status != "ok" || !body.Parser || body.Entries["pending"] != 1 {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHealthReportsUninitializedParser(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, _ := setupServer(t, parser.New(nil, nil, nil, parser.Config{}, logger))

	rec := do(t, h, "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decode[healthResponse](t, rec); body.Parser {
		t.Errorf("parser reported ready without a generator: %+v", body)
	}
}

func TestShoppingFlow(t *testing.T) {
	p := &stubParser{items: []parser.Item{{Article: "Pain complet", Quantity: 1, Category: "Boulangerie"}}}
	h, db := setupServer(t, p)
	seed(t, db, "Pommes", "Fruits et légumes")

	rec := do(t, h, "POST", "/api/grocery/parse", map[string]string{"text": "2 pommes\nPain compplet"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("parse status = %d: %s", rec.Code, rec.Body.String())
	}
	batch := decode[grocery.BatchResult](t, rec)
	if batch.Stats != (grocery.Stats{Total: 2, FromCache: 1, FromAI: 1}) {
		t.Errorf("unexpected stats: %+v", batch.Stats)
	}

	rec = do(t, h, "GET", "/api/grocery/items", nil)
	entries := decode[[]model.ListEntryView](t, rec)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	for i, st := range []string{"found", "not_found"} {
		path := "/api/grocery/items/" + itoa(entries[i].ID) + "/status"
		if rec := do(t, h, "POST", path, map[string]string{"status": st}); rec.Code != http.StatusOK {
			t.Fatalf("status update %s = %d: %s", st, rec.Code, rec.Body.String())
		}
	}
	if rec := do(t, h, "POST", "/api/grocery/items/"+itoa(entries[0].ID)+"/status", map[string]string{"status": "archived"}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid status code = %d, want 400", rec.Code)
	}

	rec = do(t, h, "POST", "/api/grocery/complete", nil)
	summary := decode[shopping.Summary](t, rec)
	if summary.ArchivedCount != 2 || summary.FoundCount != 1 || summary.NotFoundCount != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	rec = do(t, h, "GET", "/api/grocery/sessions", nil)
	sessions := decode[[]model.ShoppingSession](t, rec)
	if len(sessions) != 1 || sessions[0].SessionID != summary.SessionID {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}

	rec = do(t, h, "GET", "/api/grocery/sessions/"+summary.SessionID, nil)
	records := decode[[]model.HistoryRecord](t, rec)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}

	rec = do(t, h, "POST", "/api/grocery/history/"+itoa(records[0].ID)+"/restore", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restore status = %d: %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, h, "GET", "/api/grocery/sessions/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing session code = %d, want 404", rec.Code)
	}
}

func TestItemRoutes(t *testing.T) {
	h, db := setupServer(t, &stubParser{})
	lait := seed(t, db, "Lait", "Crèmerie")

	rec := do(t, h, "POST", "/api/grocery/items", map[string]any{"product_id": lait.ID, "quantity": 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	entry := decode[model.ListEntry](t, rec)

	if rec := do(t, h, "POST", "/api/grocery/items", map[string]any{"product_id": lait.ID, "quantity": 0}); rec.Code != http.StatusBadRequest {
		t.Errorf("zero quantity code = %d, want 400", rec.Code)
	}
	if rec := do(t, h, "POST", "/api/grocery/items", map[string]any{"product_id": 999}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown product code = %d, want 404", rec.Code)
	}

	rec = do(t, h, "PUT", "/api/grocery/items/"+itoa(entry.ID), map[string]any{"quantity": 4, "note": "entier"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	if got := decode[model.ListEntry](t, rec); got.Quantity != 4 || got.Note != "entier" {
		t.Errorf("unexpected update: %+v", got)
	}

	if rec := do(t, h, "DELETE", "/api/grocery/items/"+itoa(entry.ID), nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete code = %d", rec.Code)
	}
	if rec := do(t, h, "DELETE", "/api/grocery/items/"+itoa(entry.ID), nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete code = %d, want 404", rec.Code)
	}
	if rec := do(t, h, "PUT", "/api/grocery/items/abc", map[string]any{"quantity": 1}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id code = %d, want 400", rec.Code)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		text string
		code int
		kind string
	}{
		{"empty", nil, "  ", http.StatusBadRequest, ""},
		{"not initialized", &parser.Error{Kind: parser.KindNotInitialized, Err: parser.ErrNotInitialized}, "truc", http.StatusServiceUnavailable, "not_initialized"},
		{"timeout", &parser.Error{Kind: parser.KindTimeout}, "truc", http.StatusGatewayTimeout, "timeout"},
		{"malformed", &parser.Error{Kind: parser.KindMalformed, Err: parser.ErrMalformed}, "truc", http.StatusBadGateway, "malformed_response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, db := setupServer(t, &stubParser{err: tt.err})
			rec := do(t, h, "POST", "/api/grocery/parse", map[string]string{"text": tt.text})
			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d: %s", rec.Code, tt.code, rec.Body.String())
			}
			body := decode[map[string]string](t, rec)
			if body["kind"] != tt.kind {
				t.Errorf("kind = %q, want %q", body["kind"], tt.kind)
			}
			var n int
			db.QueryRow(`SELECT COUNT(*) FROM list_entries`).Scan(&n)
			if n != 0 {
				t.Errorf("entries written on failure: %d", n)
			}
		})
	}
}

func TestParseRateLimited(t *testing.T) {
	h, _ := setupServer(t, &stubParser{})
	var last int
	for range 4 {
		last = do(t, h, "POST", "/api/grocery/parse", map[string]string{"text": ""}).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("4th parse code = %d, want 429", last)
	}
	// Other routes are not limited.
	if rec := do(t, h, "GET", "/api/grocery/items", nil); rec.Code != http.StatusOK {
		t.Errorf("items code = %d", rec.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
