package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/pantry/internal/grocery"
	"github.com/dukerupert/pantry/internal/handler"
	"github.com/dukerupert/pantry/internal/middleware"
	"github.com/dukerupert/pantry/internal/shopping"
	"github.com/dukerupert/pantry/internal/store"
	ws "github.com/dukerupert/pantry/internal/websocket"
)

// Config holds what New needs beyond the database.
type Config struct {
	Parser         grocery.Parser
	Categories     grocery.Invalidator
	MaxLines       int
	ParseRateLimit int
	WSOrigins      []string
	// TrustProxy keys rate limits and request logs on forwarding headers.
	TrustProxy     bool
}

type Server struct {
	db          *sql.DB
	entries     *store.ListStore
	parser      grocery.Parser
	hub         *ws.Hub
	groceryH    *handler.GroceryHandler
	shoppingH   *handler.ShoppingHandler
	rateLimiter *middleware.RateLimiter
	wsOrigins   []string
	trustProxy  bool
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	opts := []grocery.Option{grocery.WithMaxLines(cfg.MaxLines)}
	if cfg.Categories != nil {
		opts = append(opts, grocery.WithCategoryInvalidator(cfg.Categories))
	}
	items := grocery.NewService(db, cfg.Parser, logger.With("component", "grocery"), opts...)
	shop := shopping.NewService(db, logger.With("component", "shopping"))

	limit := cfg.ParseRateLimit
	if limit <= 0 {
		limit = 20
	}

	httpLogger := logger.With("component", "http")
	return &Server{
		db:          db,
		entries:     store.NewListStore(db),
		parser:      cfg.Parser,
		hub:         hub,
		groceryH:    handler.NewGroceryHandler(items, shop, hub, httpLogger),
		shoppingH:   handler.NewShoppingHandler(shop, hub, httpLogger),
		rateLimiter: middleware.NewRateLimiter(limit, time.Minute),
		wsOrigins:   cfg.WSOrigins,
		trustProxy:  cfg.TrustProxy,
		logger:      logger,
	}
}

// Hub returns the websocket hub so main can close it on shutdown.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// RunCleanup expires rate limit windows until ctx is done.
func (s *Server) RunCleanup(ctx context.Context) {
	s.rateLimiter.RunCleanup(ctx, 5*time.Minute)
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.wsOrigins, s.logger.With("component", "websocket")))

	mux.Handle("POST /api/grocery/parse", middleware.RateLimit(s.rateLimiter, s.trustProxy)(http.HandlerFunc(s.groceryH.Parse)))
	mux.HandleFunc("POST /api/grocery/items", s.groceryH.Add)
	mux.HandleFunc("GET /api/grocery/items", s.groceryH.List)
	mux.HandleFunc("PUT /api/grocery/items/{id}", s.groceryH.Update)
	mux.HandleFunc("DELETE /api/grocery/items/{id}", s.groceryH.Delete)
	mux.HandleFunc("POST /api/grocery/items/{id}/status", s.shoppingH.UpdateStatus)
	mux.HandleFunc("POST /api/grocery/complete", s.shoppingH.Complete)
	mux.HandleFunc("GET /api/grocery/sessions", s.shoppingH.Sessions)
	mux.HandleFunc("GET /api/grocery/sessions/{session_id}", s.shoppingH.Session)
	mux.HandleFunc("POST /api/grocery/history/{id}/restore", s.shoppingH.Restore)

	return middleware.RequestLogger(s.logger.With("component", "http"), s.trustProxy)(mux)
}

// initializer is implemented by parsers that may run without a backend.
type initializer interface {
	Initialized() bool
}

type healthResponse struct {
	Status  string         `json:"status"`
	Parser  bool           `json:"parser"`
	Entries map[string]int `json:"entries,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Parser: s.parser != nil}
	if p, ok := s.parser.(initializer); ok {
		resp.Parser = p.Initialized()
	}

	code := http.StatusOK
	counts, err := s.entries.CountByStatus(r.Context())
	if err != nil {
		s.logger.Error("health check", "error", err)
		resp.Status, code = "unavailable", http.StatusServiceUnavailable
	} else {
		resp.Entries = make(map[string]int, len(counts))
		for st, n := range counts {
			resp.Entries[string(st)] = n
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
