// Package grocery turns free text into list entries: lines are normalized,
// matched against the catalog, sent to the external parser when unknown,
// learned into the catalog, and merged into the open list.
package grocery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/pantry/internal/database"
	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/parser"
	"github.com/dukerupert/pantry/internal/store"
)

// DefaultMaxLines bounds one parse-and-add call.
const DefaultMaxLines = 100

var (
	ErrEmptyInput      = errors.New("no items in input")
	ErrTooManyLines    = errors.New("too many lines in input")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrProductNotFound = errors.New("product not found")
)

// Parser resolves lines the catalog does not know.
type Parser interface {
	Parse(ctx context.Context, lines []string) ([]parser.Item, error)
}

// Invalidator is told when the set of categories changes.
type Invalidator interface {
	Invalidate()
}

type Service struct {
	db         *sql.DB
	catalog    *store.CategoryStore
	products   *store.ProductStore
	resolver   *Resolver
	parser     Parser
	learner    *Learner
	reconciler *Reconciler
	categories Invalidator
	maxLines   int
	logger     *slog.Logger
}

type Option func(*Service)

// WithMaxLines overrides DefaultMaxLines.
func WithMaxLines(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLines = n
		}
	}
}

// WithCategoryInvalidator registers a hook run after a batch creates a category.
func WithCategoryInvalidator(inv Invalidator) Option {
	return func(s *Service) { s.categories = inv }
}

func NewService(db *sql.DB, p Parser, logger *slog.Logger, opts ...Option) *Service {
	products := store.NewProductStore(db)
	s := &Service{
		db:         db,
		catalog:    store.NewCategoryStore(db),
		products:   products,
		resolver:   NewResolver(products),
		parser:     p,
		learner:    NewLearner(logger),
		reconciler: NewReconciler(),
		maxLines:   DefaultMaxLines,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseAndAdd puts every line of rawText on the list. Lines the catalog
// knows are added directly; the rest go through the external parser in one
// call. A parser failure fails the whole call and nothing is written.
func (s *Service) ParseAndAdd(ctx context.Context, rawText string) (*BatchResult, error) {
	lines := SplitLines(rawText)
	if len(lines) == 0 {
		return nil, ErrEmptyInput
	}
	if len(lines) > s.maxLines {
		return nil, fmt.Errorf("%w: %d lines, limit %d", ErrTooManyLines, len(lines), s.maxLines)
	}

	found, notFound, err := s.resolver.ResolveLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	var parsed []parser.Item
	if len(notFound) > 0 {
		unresolved := make([]string, len(notFound))
		for i, nf := range notFound {
			unresolved[i] = nf.Line
		}
		if s.parser == nil {
			return nil, &parser.Error{Kind: parser.KindNotInitialized, Err: parser.ErrNotInitialized}
		}
		parsed, err = s.parser.Parse(ctx, unresolved)
		if err != nil {
			return nil, fmt.Errorf("parse unresolved items: %w", err)
		}
		if len(parsed) != len(notFound) {
			return nil, fmt.Errorf("parse unresolved items: %w", parser.ErrMisaligned)
		}
	}

	var result *BatchResult
	categoryCreated := false
	err = database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		categories := s.catalog.WithTx(tx)
		products := s.products.WithTx(tx)

		items := make([]ReconcileItem, 0, len(found)+len(notFound))
		for _, f := range found {
			items = append(items, ReconcileItem{Product: f.Product, Quantity: f.Quantity, Line: f.Line, Source: SourceCatalog})
		}
		for i, nf := range notFound {
			learned, err := s.learner.Learn(ctx, categories, products, CatalogInput{
				Article:  parsed[i].Article,
				Category: parsed[i].Category,
				Term:     nf.Term,
				Quantity: learnedQuantity(parsed[i].Quantity, nf.Quantity),
			})
			if err != nil {
				return fmt.Errorf("learn %q: %w", nf.Line, err)
			}
			categoryCreated = categoryCreated || learned.CategoryCreated
			items = append(items, ReconcileItem{Product: learned.Product, Quantity: learned.Quantity, Line: nf.Line, Source: SourceParser})
		}

		result, err = s.reconciler.Reconcile(ctx, store.NewListStore(tx), items)
		return err
	})
	if err != nil {
		return nil, err
	}

	if categoryCreated && s.categories != nil {
		s.categories.Invalidate()
	}
	s.logger.Info("batch added", "batch_id", result.BatchID, "total", result.Stats.Total,
		"from_cache", result.Stats.FromCache, "from_ai", result.Stats.FromAI)
	return result, nil
}

// learnedQuantity prefers the parser's quantity, falling back to the one
// read from the line when the parser reported none.
func learnedQuantity(fromParser, fromLine int) int {
	if fromParser <= 1 && fromLine > 1 {
		return fromLine
	}
	return fromParser
}

// AddSingle puts one catalog product on the list, merging into its open
// entry when there is one.
func (s *Service) AddSingle(ctx context.Context, productID int64, quantity int, note string) (*model.ListEntry, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProductNotFound
	}

	entry, _, err := store.NewListStore(s.db).Upsert(ctx, p.ID, quantity, s.reconciler.newID(), strings.TrimSpace(note))
	if err != nil {
		return nil, err
	}
	return entry, nil
}
