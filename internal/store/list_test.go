package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/pantry/internal/model"
)

func createTestProduct(t *testing.T, db *sql.DB, name, category string) *model.Product {
	t.Helper()
	ctx := context.Background()
	cat, err := NewCategoryStore(db).FindByName(ctx, category)
	if err != nil || cat == nil {
		t.Fatalf("find category %q: %v", category, err)
	}
	p, err := NewProductStore(db).Create(ctx, name, cat.ID)
	if err != nil {
		t.Fatalf("create product %q: %v", name, err)
	}
	return p
}

func TestListUpsertMerges(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	p := createTestProduct(t, db, "Pommes", "Fruits et légumes")

	first, merged, err := ls.Upsert(ctx, p.ID, 2, "batch-1", "")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if merged {
		t.Error("first upsert should insert")
	}
	if first.Status != model.EntryPending || first.Quantity != 2 {
		t.Errorf("unexpected entry: %+v", first)
	}

	second, merged, err := ls.Upsert(ctx, p.ID, 3, "batch-2", "bio")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if !merged {
		t.Error("second upsert should merge")
	}
	if second.ID != first.ID {
		t.Errorf("merged into entry %d, want %d", second.ID, first.ID)
	}
	if second.Quantity != 5 || second.BatchID != "batch-2" || second.Note != "bio" {
		t.Errorf("unexpected merged entry: %+v", second)
	}

	// An empty note keeps the previous one.
	third, _, err := ls.Upsert(ctx, p.ID, 1, "batch-3", "")
	if err != nil {
		t.Fatalf("third upsert: %v", err)
	}
	if third.Note != "bio" {
		t.Errorf("note = %q, want %q", third.Note, "bio")
	}
}

func TestListUpsertSkipsFoundEntries(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	p := createTestProduct(t, db, "Lait", "Crèmerie")

	e, _, _ := ls.Upsert(ctx, p.ID, 1, "b1", "")
	if _, err := ls.SetStatus(ctx, e.ID, model.EntryFound); err != nil {
		t.Fatalf("set status: %v", err)
	}

	fresh, merged, err := ls.Upsert(ctx, p.ID, 2, "b2", "")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if merged || fresh.ID == e.ID {
		t.Errorf("expected a new entry beside the found one, got %+v merged=%v", fresh, merged)
	}

	open, err := ls.FindOpenByProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("find open: %v", err)
	}
	if open == nil || open.ID != fresh.ID {
		t.Errorf("open entry = %+v, want id %d", open, fresh.ID)
	}

	// Marking the new entry found is allowed; found entries are not unique.
	if _, err := ls.SetStatus(ctx, fresh.ID, model.EntryFound); err != nil {
		t.Fatalf("second found: %v", err)
	}
	// Reopening one while the other is also found is fine, reopening both is not.
	if _, err := ls.SetStatus(ctx, e.ID, model.EntryPending); err != nil {
		t.Fatalf("reopen first: %v", err)
	}
	if _, err := ls.SetStatus(ctx, fresh.ID, model.EntryPending); err == nil {
		t.Error("expected unique violation reopening a second entry")
	}
}

func TestListViewsAndStatus(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	pommes := createTestProduct(t, db, "Pommes", "Fruits et légumes")
	pain := createTestProduct(t, db, "Pain complet", "Boulangerie")
	lait := createTestProduct(t, db, "Lait", "Crèmerie")

	a, _, _ := ls.Upsert(ctx, pain.ID, 1, "b", "")
	b, _, _ := ls.Upsert(ctx, pommes.ID, 2, "b", "")
	c, _, _ := ls.Upsert(ctx, lait.ID, 1, "b", "")
	ls.SetStatus(ctx, b.ID, model.EntryFound)
	ls.SetStatus(ctx, c.ID, model.EntryNotFound)

	all, err := ls.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[len(all)-1].ID != b.ID {
		t.Errorf("found entry should sort last, got order %d %d %d", all[0].ID, all[1].ID, all[2].ID)
	}
	if all[0].ProductName == "" || all[0].CategoryName == "" {
		t.Errorf("expected joined names, got %+v", all[0])
	}

	done, err := ls.ListByStatus(ctx, model.EntryFound, model.EntryNotFound)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("expected 2 finished entries, got %d", len(done))
	}

	counts, err := ls.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[model.EntryPending] != 1 || counts[model.EntryFound] != 1 || counts[model.EntryNotFound] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	n, err := ls.DeleteByIDs(ctx, []int64{b.ID, c.ID})
	if err != nil {
		t.Fatalf("delete by ids: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	if got, _ := ls.GetByID(ctx, a.ID); got == nil {
		t.Error("pending entry should survive")
	}
}

func TestListUpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ls := NewListStore(db)
	ctx := context.Background()
	p := createTestProduct(t, db, "Beurre", "Crèmerie")

	e, _, _ := ls.Upsert(ctx, p.ID, 1, "b", "")
	updated, err := ls.Update(ctx, e.ID, 4, "doux")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Quantity != 4 || updated.Note != "doux" {
		t.Errorf("unexpected update: %+v", updated)
	}
	if _, err := ls.Update(ctx, e.ID, 0, ""); err == nil {
		t.Error("expected check constraint violation for quantity 0")
	}

	grown, err := ls.AddQuantity(ctx, e.ID, 2)
	if err != nil {
		t.Fatalf("add quantity: %v", err)
	}
	if grown.Quantity != 6 {
		t.Errorf("quantity = %d, want 6", grown.Quantity)
	}

	if err := ls.Delete(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := ls.GetByID(ctx, e.ID); got != nil {
		t.Errorf("expected nil after delete, got %+v", got)
	}
}

func TestHistorySessions(t *testing.T) {
	db := setupTestDB(t)
	hs := NewHistoryStore(db)
	ctx := context.Background()
	p := createTestProduct(t, db, "Pommes", "Fruits et légumes")

	earlier := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(48 * time.Hour)
	records := []model.HistoryRecord{
		{ProductID: &p.ID, ProductName: "Pommes", CategoryName: "Fruits et légumes", Quantity: 2, Status: model.EntryFound, SessionID: "s1", CompletedAt: earlier},
		{ProductName: "Lait", CategoryName: "Crèmerie", Quantity: 1, Status: model.EntryNotFound, SessionID: "s1", CompletedAt: earlier},
		{ProductName: "Pain", CategoryName: "Boulangerie", Quantity: 1, Status: model.EntryFound, SessionID: "s2", CompletedAt: later},
	}
	if err := hs.InsertBatch(ctx, records); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	sessions, err := hs.Sessions(ctx, 0)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != "s2" {
		t.Errorf("most recent session = %q, want s2", sessions[0].SessionID)
	}
	s1 := sessions[1]
	if s1.ItemCount != 2 || s1.FoundCount != 1 || s1.NotFoundCount != 1 {
		t.Errorf("unexpected s1 counts: %+v", s1)
	}
	if !s1.StartedAt.Equal(earlier) || !s1.CompletedAt.Equal(earlier) {
		t.Errorf("unexpected s1 times: %v %v", s1.StartedAt, s1.CompletedAt)
	}

	limited, err := hs.Sessions(ctx, 1)
	if err != nil {
		t.Fatalf("sessions limit: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected 1 session with limit, got %d", len(limited))
	}

	recs, err := hs.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("list by session: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	var withProduct, without int
	for _, r := range recs {
		if r.ProductID != nil {
			withProduct++
		} else {
			without++
		}
	}
	if withProduct != 1 || without != 1 {
		t.Errorf("product id nullability lost: %d with, %d without", withProduct, without)
	}

	got, err := hs.GetByID(ctx, recs[0].ID)
	if err != nil || got == nil {
		t.Fatalf("get by id: %v %v", got, err)
	}
}

func TestHistorySurvivesProductDelete(t *testing.T) {
	db := setupTestDB(t)
	hs := NewHistoryStore(db)
	ps := NewProductStore(db)
	ctx := context.Background()
	p := createTestProduct(t, db, "Yaourt", "Crèmerie")

	err := hs.InsertBatch(ctx, []model.HistoryRecord{
		{ProductID: &p.ID, ProductName: "Yaourt", CategoryName: "Crèmerie", Quantity: 3, Status: model.EntryFound, SessionID: "s", CompletedAt: time.Now()},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := ps.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	recs, _ := hs.ListBySession(ctx, "s")
	if len(recs) != 1 {
		t.Fatalf("expected record to survive, got %d", len(recs))
	}
	if recs[0].ProductID != nil {
		t.Errorf("expected product id cleared, got %d", *recs[0].ProductID)
	}
	if recs[0].ProductName != "Yaourt" {
		t.Errorf("product name = %q", recs[0].ProductName)
	}
}

func TestParserLog(t *testing.T) {
	pl := NewParserLogStore(setupTestDB(t))
	ctx := context.Background()

	if err := pl.Create(ctx, model.ParserCall{InputText: "Pain compplet", Success: true, InputTokens: 4, OutputTokens: 12, LatencyMS: 320}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pl.Create(ctx, model.ParserCall{InputText: "x", ErrorKind: "timeout"}); err != nil {
		t.Fatalf("create failure: %v", err)
	}

	calls, err := pl.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].ErrorKind != "timeout" || calls[0].Success {
		t.Errorf("unexpected latest call: %+v", calls[0])
	}
	if !calls[1].Success || calls[1].LatencyMS != 320 {
		t.Errorf("unexpected first call: %+v", calls[1])
	}
}
