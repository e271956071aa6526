// Package catalog is the persistence adapter for the variable catalog: it
// maps entities to relational rows and exposes validated CRUD operations.
// Cascade deletion of labels and constraints happens here, not in callers.
package catalog

import (
	"context"

	"varman/internal/store"
)

// Catalog provides validated access to the persisted variable catalog.
type Catalog struct {
	store *store.Store
}

// New wraps an open store.
func New(s *store.Store) *Catalog {
	return &Catalog{store: s}
}

// Store exposes the underlying store for transaction control.
func (c *Catalog) Store() *store.Store {
	return c.store
}

// VariableNameTaken implements validate.Refs.
func (c *Catalog) VariableNameTaken(ctx context.Context, name string) (bool, error) {
	return c.exists(ctx, "SELECT 1 FROM variables WHERE name = ?", name)
}

// CategorySetExists implements validate.Refs.
func (c *Catalog) CategorySetExists(ctx context.Context, id int64) (bool, error) {
	return c.exists(ctx, "SELECT 1 FROM category_sets WHERE id = ?", id)
}

// CategorySetNameExists implements validate.Refs.
func (c *Catalog) CategorySetNameExists(ctx context.Context, name string) (bool, error) {
	return c.exists(ctx, "SELECT 1 FROM category_sets WHERE name = ?", name)
}

func (c *Catalog) exists(ctx context.Context, query string, arg any) (bool, error) {
	var one int
	err := c.store.DB.QueryRowContext(ctx, c.store.Rebind(query), arg).Scan(&one)
	if err != nil {
		if mapped := c.store.MapError(err); isNotFound(mapped) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
