package grocery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/store"
	"github.com/dukerupert/pantry/internal/textkey"
	"github.com/go-playground/validator/v10"
)

// DefaultCategoryIcon is given to categories the learner creates.
const DefaultCategoryIcon = "🛒"

// CategoryRepo is the category storage the learner writes through.
type CategoryRepo interface {
	FindByName(ctx context.Context, name string) (*model.Category, error)
	Create(ctx context.Context, name, icon string, sortOrder int) (*model.Category, error)
	NextSortOrder(ctx context.Context) (int, error)
}

// ProductRepo is the product storage the learner writes through.
type ProductRepo interface {
	FindByName(ctx context.Context, name string) (*model.Product, error)
	Create(ctx context.Context, name string, categoryID int64) (*model.Product, error)
	UpdateCategory(ctx context.Context, id, categoryID int64) (*model.Product, error)
	AddAlias(ctx context.Context, productID int64, text string) error
}

// Learned is the outcome of teaching the catalog one item.
type Learned struct {
	Product         *model.Product
	Quantity        int
	CategoryCreated bool
	AliasAdded      bool
}

// Learner turns validated parser output into catalog rows, so the same
// spelling resolves locally next time.
type Learner struct {
	validate *validator.Validate
	logger   *slog.Logger
}

func NewLearner(logger *slog.Logger) *Learner {
	return &Learner{validate: newValidator(), logger: logger}
}

// Learn finds or creates the category and product for in, reassigning the
// product's category when it differs, and records in.Term as an alias when
// it is not just the product name. Alias conflicts are logged and ignored.
func (l *Learner) Learn(ctx context.Context, categories CategoryRepo, products ProductRepo, in CatalogInput) (*Learned, error) {
	in = in.Sanitize()
	if err := validateInput(l.validate, in); err != nil {
		return nil, err
	}

	cat, created, err := l.category(ctx, categories, in.Category)
	if err != nil {
		return nil, err
	}

	p, err := products.FindByName(ctx, in.Article)
	if err != nil {
		return nil, fmt.Errorf("learn product: %w", err)
	}
	switch {
	case p == nil:
		p, err = products.Create(ctx, in.Article, cat.ID)
		if err != nil {
			return nil, fmt.Errorf("learn product: %w", err)
		}
	case p.CategoryID != cat.ID:
		p, err = products.UpdateCategory(ctx, p.ID, cat.ID)
		if err != nil {
			return nil, fmt.Errorf("learn product: %w", err)
		}
	}

	learned := &Learned{Product: p, Quantity: in.Quantity, CategoryCreated: created}
	if in.Term == "" || textkey.Equal(in.Term, in.Article) {
		return learned, nil
	}
	err = products.AddAlias(ctx, p.ID, in.Term)
	switch {
	case err == nil:
		learned.AliasAdded = true
	case errors.Is(err, store.ErrAliasTaken), errors.Is(err, store.ErrAliasIsName):
		l.logger.Debug("alias skipped", "product", p.Name, "alias", in.Term, "reason", err)
	default:
		return nil, fmt.Errorf("learn alias: %w", err)
	}
	return learned, nil
}

func (l *Learner) category(ctx context.Context, categories CategoryRepo, name string) (*model.Category, bool, error) {
	cat, err := categories.FindByName(ctx, name)
	if err != nil {
		return nil, false, fmt.Errorf("learn category: %w", err)
	}
	if cat != nil {
		return cat, false, nil
	}
	order, err := categories.NextSortOrder(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("learn category: %w", err)
	}
	cat, err = categories.Create(ctx, name, DefaultCategoryIcon, order)
	if err != nil {
		return nil, false, fmt.Errorf("learn category: %w", err)
	}
	l.logger.Info("category learned", "category", cat.Name)
	return cat, true, nil
}
