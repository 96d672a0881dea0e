package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/pantry/internal/model"
	"github.com/dukerupert/pantry/internal/textkey"
)

var (
	// ErrAliasTaken is returned when the alias already points at another product.
	ErrAliasTaken = errors.New("alias already used by another product")
	// ErrAliasIsName is returned when the alias equals its own product's name.
	ErrAliasIsName = errors.New("alias equals product name")
)

type ProductStore struct {
	db DBTX
}

func NewProductStore(db DBTX) *ProductStore {
	return &ProductStore{db: db}
}

// WithTx returns a ProductStore bound to tx.
func (s *ProductStore) WithTx(tx *sql.Tx) *ProductStore {
	return &ProductStore{db: tx}
}

func scanProduct(row scanner) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const productCols = `id, name, category_id, created_at, updated_at`

func (s *ProductStore) getOne(ctx context.Context, what, query string, args ...any) (*model.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return p, nil
}

func (s *ProductStore) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	return s.getOne(ctx, "get product", `SELECT `+productCols+` FROM products WHERE id = ?`, id)
}

// FindByName matches the product name case-insensitively.
func (s *ProductStore) FindByName(ctx context.Context, name string) (*model.Product, error) {
	return s.getOne(ctx, "find product by name",
		`SELECT `+productCols+` FROM products WHERE name_key = ?`, textkey.Fold(name))
}

// FindByAlias returns the product owning alias, matched case-insensitively.
func (s *ProductStore) FindByAlias(ctx context.Context, alias string) (*model.Product, error) {
	return s.getOne(ctx, "find product by alias",
		`SELECT p.id, p.name, p.category_id, p.created_at, p.updated_at
		 FROM product_aliases a JOIN products p ON p.id = a.product_id
		 WHERE a.alias_key = ?`, textkey.Fold(alias))
}

func (s *ProductStore) Create(ctx context.Context, name string, categoryID int64) (*model.Product, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, name_key, category_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, textkey.Fold(name), categoryID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ProductStore) UpdateCategory(ctx context.Context, id, categoryID int64) (*model.Product, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET category_id = ?, updated_at = ? WHERE id = ?`,
		categoryID, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update product category: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ProductStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// AddAlias attaches text to the product. Adding an alias the product already
// owns is a no-op. A conflict with another product's alias is reported as
// ErrAliasTaken rather than a driver error.
func (s *ProductStore) AddAlias(ctx context.Context, productID int64, text string) error {
	p, err := s.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("add alias: product %d not found", productID)
	}
	key := textkey.Fold(text)
	if key == textkey.Fold(p.Name) {
		return ErrAliasIsName
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO product_aliases (product_id, text, alias_key, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (alias_key) DO NOTHING`,
		productID, text, key, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alias: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var owner int64
	if err := s.db.QueryRowContext(ctx, `SELECT product_id FROM product_aliases WHERE alias_key = ?`, key).Scan(&owner); err != nil {
		return fmt.Errorf("alias owner: %w", err)
	}
	if owner != productID {
		return ErrAliasTaken
	}
	return nil
}

func (s *ProductStore) RemoveAlias(ctx context.Context, productID int64, text string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM product_aliases WHERE product_id = ? AND alias_key = ?`,
		productID, textkey.Fold(text),
	)
	if err != nil {
		return fmt.Errorf("remove alias: %w", err)
	}
	return nil
}

func (s *ProductStore) ListAliases(ctx context.Context, productID int64) ([]model.Alias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, text, created_at FROM product_aliases WHERE product_id = ? ORDER BY text ASC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []model.Alias
	for rows.Next() {
		var a model.Alias
		if err := rows.Scan(&a.ID, &a.ProductID, &a.Text, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}
