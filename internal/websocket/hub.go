// Package websocket pushes list changes to every open client so that a
// household shopping together sees the same list.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

type EventType string

const (
	EventEntriesAdded      EventType = "entries_added"
	EventEntryUpdated      EventType = "entry_updated"
	EventEntryDeleted      EventType = "entry_deleted"
	EventEntryRestored     EventType = "entry_restored"
	EventShoppingCompleted EventType = "shopping_completed"
)

// Event is a list change notification. Clients refetch the list on receipt;
// Seq lets them notice missed events.
type Event struct {
	Type      EventType `json:"type"`
	Seq       uint64    `json:"seq"`
	EntryID   int64     `json:"entry_id,omitempty"`
	BatchID   string    `json:"batch_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Count     int       `json:"count,omitempty"`
	At        time.Time `json:"at"`
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	seq     uint64
	closed  bool
	logger  *slog.Logger
	now     func() time.Time
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
		now:     time.Now,
	}
}

// Register adds c. It reports false once the hub is closed.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// Unregister removes c and closes its send channel. It is safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Publish stamps ev with the next sequence number and sends it to every
// client without blocking. A client whose buffer is full misses the event.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	h.seq++
	ev.Seq = h.seq
	ev.At = h.now().UTC()
	h.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("event dropped for slow client", "type", ev.Type, "seq", ev.Seq)
		}
	}
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
