package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/shopping"
	ws "github.com/dukerupert/pantry/internal/websocket"
)

const defaultSessionLimit = 20

// ShoppingHandler serves shopping mode and history routes.
type ShoppingHandler struct {
	shopping *shopping.Service
	events   Publisher
	logger   *slog.Logger
}

func NewShoppingHandler(shop *shopping.Service, events Publisher, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{shopping: shop, events: events, logger: logger}
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *ShoppingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON"})
		return
	}
	status, err := shopping.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, h.logger, "invalid status", err)
		return
	}

	entry, err := h.shopping.UpdateStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, r, h.logger, "failed to update status", err)
		return
	}
	if entry.ID != id {
		h.events.Publish(ws.Event{Type: ws.EventEntryDeleted, EntryID: id})
	}
	h.events.Publish(ws.Event{Type: ws.EventEntryUpdated, EntryID: entry.ID})
	writeJSON(w, http.StatusOK, entry)
}

func (h *ShoppingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	summary, err := h.shopping.CompleteShopping(r.Context())
	if err != nil {
		writeError(w, r, h.logger, "failed to complete shopping", err)
		return
	}
	if summary.ArchivedCount > 0 {
		h.events.Publish(ws.Event{Type: ws.EventShoppingCompleted, SessionID: summary.SessionID, Count: summary.ArchivedCount})
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *ShoppingHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid limit"})
			return
		}
		limit = n
	}

	sessions, err := h.shopping.Sessions(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.logger, "failed to list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []model.ShoppingSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *ShoppingHandler) Session(w http.ResponseWriter, r *http.Request) {
	records, err := h.shopping.SessionRecords(r.Context(), r.PathValue("session_id"))
	if err != nil {
		writeError(w, r, h.logger, "failed to get session", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *ShoppingHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid id"})
		return
	}
	entry, err := h.shopping.Restore(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, "failed to restore item", err)
		return
	}
	h.events.Publish(ws.Event{Type: ws.EventEntryRestored, EntryID: entry.ID, BatchID: entry.BatchID})
	writeJSON(w, http.StatusOK, entry)
}
