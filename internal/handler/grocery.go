package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/pantry/internal/grocery"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/shopping"
	ws "github.com/dukerupert/pantry/internal/websocket"
)

// GroceryHandler serves list entry routes.
type GroceryHandler struct {
	items    *grocery.Service
	shopping *shopping.Service
	events   Publisher
	logger   *slog.Logger
}

func NewGroceryHandler(items *grocery.Service, shop *shopping.Service, events Publisher, logger *slog.Logger) *GroceryHandler {
	return &GroceryHandler{items: items, shopping: shop, events: events, logger: logger}
}

type parseRequest struct {
	Text string `json:"text"`
}

func (h *GroceryHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON"})
		return
	}

	result, err := h.items.ParseAndAdd(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, h.logger, "failed to add items", err)
		return
	}
	h.events.Publish(ws.Event{Type: ws.EventEntriesAdded, BatchID: result.BatchID, Count: result.Stats.Total})
	writeJSON(w, http.StatusCreated, result)
}

type addItemRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  *int   `json:"quantity"`
	Note      string `json:"note"`
}

func (h *GroceryHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON"})
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	entry, err := h.items.AddSingle(r.Context(), req.ProductID, qty, req.Note)
	if err != nil {
		writeError(w, r, h.logger, "failed to add item", err)
		return
	}
	h.events.Publish(ws.Event{Type: ws.EventEntriesAdded, EntryID: entry.ID, BatchID: entry.BatchID, Count: 1})
	writeJSON(w, http.StatusCreated, entry)
}

func (h *GroceryHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.shopping.OpenEntries(r.Context())
	if err != nil {
		writeError(w, r, h.logger, "failed to list items", err)
		return
	}
	if entries == nil {
		entries = []model.ListEntryView{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type updateItemRequest struct {
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

func (h *GroceryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}
	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON"})
		return
	}

	entry, err := h.shopping.UpdateEntry(r.Context(), id, req.Quantity, req.Note)
	if err != nil {
		writeError(w, r, h.logger, "failed to update item", err)
		return
	}
	h.events.Publish(ws.Event{Type: ws.EventEntryUpdated, EntryID: entry.ID})
	writeJSON(w, http.StatusOK, entry)
}

func (h *GroceryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}
	if err := h.shopping.DeleteEntry(r.Context(), id); err != nil {
		writeError(w, r, h.logger, "failed to delete item", err)
		return
	}
	h.events.Publish(ws.Event{Type: ws.EventEntryDeleted, EntryID: id})
	w.WriteHeader(http.StatusNoContent)
}
