package grocery

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/textkey"
)

// ProductFinder looks products up by exact, case-insensitive name or alias.
type ProductFinder interface {
	FindByName(ctx context.Context, name string) (*model.Product, error)
	FindByAlias(ctx context.Context, alias string) (*model.Product, error)
}

// Found is a line matched against the catalog.
type Found struct {
	Product  *model.Product
	Quantity int
	Line     string
}

// NotFound is a line the catalog does not know yet.
type NotFound struct {
	Term     string
	Quantity int
	Line     string
}

type Resolver struct {
	products ProductFinder
}

func NewResolver(products ProductFinder) *Resolver {
	return &Resolver{products: products}
}

// Variants returns the folded term followed by its singular or plural
// forms, without duplicates.
func Variants(term string) []string {
	t := textkey.Fold(term)
	if t == "" {
		return nil
	}
	variants := []string{t}
	n := utf8.RuneCountInString(t)
	if strings.HasSuffix(t, "s") && n > 2 {
		variants = append(variants, strings.TrimSuffix(t, "s"))
		if strings.HasSuffix(t, "es") && n > 3 {
			variants = append(variants, strings.TrimSuffix(t, "es"))
		}
	} else {
		variants = append(variants, t+"s")
	}

	seen := make(map[string]bool, len(variants))
	out := variants[:0]
	for _, v := range variants {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// Resolve tries each variant against product names, then aliases, and
// returns the first hit. It returns nil, nil when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, term string) (*model.Product, error) {
	for _, v := range Variants(term) {
		p, err := r.products.FindByName(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", term, err)
		}
		if p != nil {
			return p, nil
		}
		p, err = r.products.FindByAlias(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", term, err)
		}
		if p != nil {
			return p, nil
		}
	}
	return nil, nil
}

// ResolveLines normalizes and resolves every line, keeping input order
// within each partition.
func (r *Resolver) ResolveLines(ctx context.Context, lines []string) ([]Found, []NotFound, error) {
	var found []Found
	var notFound []NotFound
	for _, raw := range lines {
		l := ParseLine(raw)
		p, err := r.Resolve(ctx, l.Term)
		if err != nil {
			return nil, nil, err
		}
		if p != nil {
			found = append(found, Found{Product: p, Quantity: l.Quantity, Line: l.Raw})
			continue
		}
		notFound = append(notFound, NotFound{Term: l.Term, Quantity: l.Quantity, Line: l.Raw})
	}
	return found, notFound, nil
}
