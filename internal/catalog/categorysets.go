package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"varman/internal/metadata"
	"varman/internal/store"
	"varman/internal/validate"
)

// CreateCategorySet validates and persists a category set with its
// categories and their labels, in one transaction.
func (c *Catalog) CreateCategorySet(ctx context.Context, proposed *metadata.CategorySet) (*metadata.CategorySet, error) {
	result, err := validate.CategorySet(ctx, proposed, nil, c)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, ValidationError(result.Errors)
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	created, err := c.CreateCategorySetTx(ctx, tx, proposed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c.CategorySetByID(ctx, created.ID)
}

// CreateCategorySetTx persists a pre-validated category set inside the
// caller's transaction.
func (c *Catalog) CreateCategorySetTx(ctx context.Context, tx *sql.Tx, set *metadata.CategorySet) (*metadata.CategorySet, error) {
	query := c.store.Rebind(`INSERT INTO category_sets (name) VALUES (?) RETURNING id`)
	var setID int64
	if err := tx.QueryRowContext(ctx, query, set.Name).Scan(&setID); err != nil {
		return nil, fmt.Errorf("insert category set %q: %w", set.Name, c.store.MapError(err))
	}
	for _, cat := range set.Categories {
		if _, err := c.insertCategoryTx(ctx, tx, setID, cat); err != nil {
			return nil, err
		}
	}
	out := *set
	out.ID = setID
	return &out, nil
}

func (c *Catalog) insertCategoryTx(ctx context.Context, tx *sql.Tx, setID int64, cat metadata.Category) (int64, error) {
	query := c.store.Rebind(`INSERT INTO categories (category_set_id, name) VALUES (?, ?) RETURNING id`)
	var catID int64
	if err := tx.QueryRowContext(ctx, query, setID, cat.Name).Scan(&catID); err != nil {
		return 0, fmt.Errorf("insert category %q: %w", cat.Name, c.store.MapError(err))
	}
	for _, l := range cat.Labels {
		normalized, err := normalizeLabel(l)
		if err != nil {
			return 0, ValidationError([]validate.Issue{{Field: "labels", Message: err.Error()}})
		}
		if err := c.upsertLabel(ctx, tx, metadata.OwnerCategory, catID, normalized); err != nil {
			return 0, err
		}
	}
	return catID, nil
}

// CategorySetByName returns a fully loaded category set, or nil when absent.
func (c *Catalog) CategorySetByName(ctx context.Context, name string) (*metadata.CategorySet, error) {
	return c.loadCategorySet(ctx, "name", name)
}

// CategorySetByID returns a fully loaded category set, or nil when absent.
func (c *Catalog) CategorySetByID(ctx context.Context, id int64) (*metadata.CategorySet, error) {
	return c.loadCategorySet(ctx, "id", id)
}

func (c *Catalog) loadCategorySet(ctx context.Context, field string, value any) (*metadata.CategorySet, error) {
	query := c.store.Rebind(`SELECT id, name FROM category_sets WHERE ` + field + ` = ?`)
	var set metadata.CategorySet
	err := c.store.DB.QueryRowContext(ctx, query, value).Scan(&set.ID, &set.Name)
	if err != nil {
		if isNotFound(c.store.MapError(err)) {
			return nil, nil
		}
		return nil, fmt.Errorf("load category set: %w", err)
	}
	if err := c.hydrateCategorySet(ctx, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// CategorySets lists all category sets in name order, fully loaded.
func (c *Catalog) CategorySets(ctx context.Context) ([]*metadata.CategorySet, error) {
	rows, err := c.store.DB.QueryContext(ctx, `SELECT id, name FROM category_sets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list category sets: %w", err)
	}
	defer rows.Close()

	var out []*metadata.CategorySet
	for rows.Next() {
		var set metadata.CategorySet
		if err := rows.Scan(&set.ID, &set.Name); err != nil {
			return nil, fmt.Errorf("scan category set: %w", err)
		}
		out = append(out, &set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, set := range out {
		if err := c.hydrateCategorySet(ctx, set); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AddCategory appends a category to the named set. Category order is
// insertion order, so the new category sorts last.
func (c *Catalog) AddCategory(ctx context.Context, setName string, cat metadata.Category) error {
	set, err := c.CategorySetByName(ctx, setName)
	if err != nil {
		return err
	}
	if set == nil {
		return NotFoundError("category set", setName)
	}
	if result := validate.Category(&cat, set); !result.Valid() {
		return ValidationError(result.Errors)
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := c.insertCategoryTx(ctx, tx, set.ID, cat); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveCategory deletes a category and its labels from the named set.
func (c *Catalog) RemoveCategory(ctx context.Context, setName, categoryName string) error {
	set, err := c.CategorySetByName(ctx, setName)
	if err != nil {
		return err
	}
	if set == nil {
		return NotFoundError("category set", setName)
	}
	cat := set.CategoryByName(categoryName)
	if cat == nil {
		return NotFoundError("category", categoryName)
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := c.deleteLabelsFor(ctx, tx, metadata.OwnerCategory, cat.ID); err != nil {
		return err
	}
	query := c.store.Rebind(`DELETE FROM categories WHERE id = ?`)
	if _, err := store.Exec(ctx, tx, query, cat.ID); err != nil {
		return fmt.Errorf("delete category %q: %w", categoryName, c.store.MapError(err))
	}
	return tx.Commit()
}

// AddCategoryLabel attaches a label to a category in the named set,
// replacing any existing label with the same language code and purpose.
func (c *Catalog) AddCategoryLabel(ctx context.Context, setName, categoryName string, l metadata.Label) error {
	set, err := c.CategorySetByName(ctx, setName)
	if err != nil {
		return err
	}
	if set == nil {
		return NotFoundError("category set", setName)
	}
	cat := set.CategoryByName(categoryName)
	if cat == nil {
		return NotFoundError("category", categoryName)
	}
	normalized, err := normalizeLabel(l)
	if err != nil {
		return ValidationError([]validate.Issue{{Field: "purpose", Message: err.Error()}})
	}
	if normalized.Text == "" {
		return ValidationError([]validate.Issue{{Field: "text", Message: "label text is required"}})
	}
	if normalized.LanguageCode == "" {
		return ValidationError([]validate.Issue{{Field: "language_code", Message: "language code is required"}})
	}
	return c.upsertLabel(ctx, c.store.DB, metadata.OwnerCategory, cat.ID, normalized)
}

// RemoveCategoryLabel detaches a category label by id, verifying ownership.
func (c *Catalog) RemoveCategoryLabel(ctx context.Context, setName, categoryName string, labelID int64) error {
	set, err := c.CategorySetByName(ctx, setName)
	if err != nil {
		return err
	}
	if set == nil {
		return NotFoundError("category set", setName)
	}
	cat := set.CategoryByName(categoryName)
	if cat == nil {
		return NotFoundError("category", categoryName)
	}
	return c.removeLabel(ctx, metadata.OwnerCategory, cat.ID, labelID)
}

// DeleteCategorySet removes a category set with its categories and their
// labels. A set still referenced by any variable is an integrity violation
// and the delete is rejected.
func (c *Catalog) DeleteCategorySet(ctx context.Context, name string) error {
	set, err := c.CategorySetByName(ctx, name)
	if err != nil {
		return err
	}
	if set == nil {
		return NotFoundError("category set", name)
	}

	query := c.store.Rebind(`SELECT count(*) FROM variables WHERE category_set_id = ?`)
	var refs int64
	if err := c.store.DB.QueryRowContext(ctx, query, set.ID).Scan(&refs); err != nil {
		return fmt.Errorf("count references: %w", err)
	}
	if refs > 0 {
		return IntegrityError(fmt.Sprintf("category set %q is referenced by %d variable(s)", name, refs))
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, cat := range set.Categories {
		if err := c.deleteLabelsFor(ctx, tx, metadata.OwnerCategory, cat.ID); err != nil {
			return err
		}
	}
	delQuery := c.store.Rebind(`DELETE FROM category_sets WHERE id = ?`)
	if _, err := store.Exec(ctx, tx, delQuery, set.ID); err != nil {
		return fmt.Errorf("delete category set %q: %w", name, c.store.MapError(err))
	}
	return tx.Commit()
}

func (c *Catalog) hydrateCategorySet(ctx context.Context, set *metadata.CategorySet) error {
	query := c.store.Rebind(`
		SELECT id, name
		FROM categories
		WHERE category_set_id = ?
		ORDER BY id
	`)
	rows, err := c.store.DB.QueryContext(ctx, query, set.ID)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	defer rows.Close()

	set.Categories = nil
	for rows.Next() {
		cat := metadata.Category{CategorySetID: set.ID}
		if err := rows.Scan(&cat.ID, &cat.Name); err != nil {
			return fmt.Errorf("scan category: %w", err)
		}
		set.Categories = append(set.Categories, cat)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range set.Categories {
		labels, err := c.loadLabels(ctx, c.store.DB, metadata.OwnerCategory, set.Categories[i].ID)
		if err != nil {
			return err
		}
		set.Categories[i].Labels = labels
	}
	return nil
}
