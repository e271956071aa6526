package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"varman/internal/metadata"
	"varman/internal/store"
	"varman/internal/validate"
)

// CreateVariable validates and persists a new variable together with its
// labels and constraints, in one transaction.
func (c *Catalog) CreateVariable(ctx context.Context, proposed *metadata.Variable) (*metadata.Variable, error) {
	result, err := validate.Variable(ctx, proposed, nil, nil, c)
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

	created, err := c.InsertVariableTx(ctx, tx, proposed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c.VariableByID(ctx, created.ID)
}

// CreateCategorical creates a nominal or ordinal variable together with a
// fresh category set of the same name, in one transaction.
func (c *Catalog) CreateCategorical(ctx context.Context, name string, dataType metadata.DataType, categoryNames []string, description, reference string) (*metadata.Variable, error) {
	if !dataType.Categorical() {
		return nil, ValidationError([]validate.Issue{{
			Field:   "data_type",
			Message: fmt.Sprintf("data type must be nominal or ordinal, got %q", dataType),
		}})
	}

	set := &metadata.CategorySet{Name: name}
	for _, cn := range categoryNames {
		set.Categories = append(set.Categories, metadata.Category{Name: cn})
	}
	setResult, err := validate.CategorySet(ctx, set, nil, c)
	if err != nil {
		return nil, err
	}
	proposed := &metadata.Variable{
		Name:        name,
		DataType:    dataType,
		Description: description,
		Reference:   reference,
	}
	varResult, err := validate.Variable(ctx, proposed, nil, set, c)
	if err != nil {
		return nil, err
	}
	issues := append(setResult.Errors, varResult.Errors...)
	if len(issues) > 0 {
		return nil, ValidationError(issues)
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	createdSet, err := c.CreateCategorySetTx(ctx, tx, set)
	if err != nil {
		return nil, err
	}
	proposed.CategorySetID = &createdSet.ID
	created, err := c.InsertVariableTx(ctx, tx, proposed)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return c.VariableByID(ctx, created.ID)
}

// InsertVariableTx persists a pre-validated variable row plus its labels and
// constraints inside the caller's transaction.
func (c *Catalog) InsertVariableTx(ctx context.Context, tx *sql.Tx, v *metadata.Variable) (*metadata.Variable, error) {
	query := c.store.Rebind(`
		INSERT INTO variables (name, data_type, category_set_id, description, reference)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	var id int64
	err := tx.QueryRowContext(ctx, query, v.Name, string(v.DataType), nullableID(v.CategorySetID), v.Description, v.Reference).Scan(&id)
	if err != nil {
		mapped := c.store.MapError(err)
		if errors.Is(mapped, store.ErrUniqueViolation) {
			return nil, ConflictError("variable", v.Name)
		}
		return nil, fmt.Errorf("insert variable %q: %w", v.Name, mapped)
	}

	for _, l := range v.Labels {
		normalized, err := normalizeLabel(l)
		if err != nil {
			return nil, ValidationError([]validate.Issue{{Field: "labels", Message: err.Error()}})
		}
		if err := c.upsertLabel(ctx, tx, metadata.OwnerVariable, id, normalized); err != nil {
			return nil, err
		}
	}
	for _, con := range v.Constraints {
		if err := c.upsertConstraint(ctx, tx, id, con); err != nil {
			return nil, err
		}
	}

	out := *v
	out.ID = id
	return &out, nil
}

// ReplaceVariableTx overwrites an existing variable in place, preserving its
// id: row fields are updated and old labels and constraints are dropped
// before the new ones are written.
func (c *Catalog) ReplaceVariableTx(ctx context.Context, tx *sql.Tx, existingID int64, v *metadata.Variable) error {
	query := c.store.Rebind(`
		UPDATE variables
		SET name = ?, data_type = ?, category_set_id = ?, description = ?, reference = ?,
		    updated_at = ` + c.store.Dialect.NowExpr() + `
		WHERE id = ?
	`)
	if _, err := store.Exec(ctx, tx, query, v.Name, string(v.DataType), nullableID(v.CategorySetID), v.Description, v.Reference, existingID); err != nil {
		return fmt.Errorf("update variable %q: %w", v.Name, c.store.MapError(err))
	}
	if err := c.deleteLabelsFor(ctx, tx, metadata.OwnerVariable, existingID); err != nil {
		return err
	}
	if err := c.deleteConstraintsFor(ctx, tx, existingID); err != nil {
		return err
	}
	for _, l := range v.Labels {
		normalized, err := normalizeLabel(l)
		if err != nil {
			return ValidationError([]validate.Issue{{Field: "labels", Message: err.Error()}})
		}
		if err := c.upsertLabel(ctx, tx, metadata.OwnerVariable, existingID, normalized); err != nil {
			return err
		}
	}
	for _, con := range v.Constraints {
		if err := c.upsertConstraint(ctx, tx, existingID, con); err != nil {
			return err
		}
	}
	return nil
}

// VariableByName returns a fully loaded variable, or nil when absent.
func (c *Catalog) VariableByName(ctx context.Context, name string) (*metadata.Variable, error) {
	return c.loadVariable(ctx, "name", name)
}

// VariableByID returns a fully loaded variable, or nil when absent.
func (c *Catalog) VariableByID(ctx context.Context, id int64) (*metadata.Variable, error) {
	return c.loadVariable(ctx, "id", id)
}

func (c *Catalog) loadVariable(ctx context.Context, field string, value any) (*metadata.Variable, error) {
	query := c.store.Rebind(`
		SELECT id, name, data_type, category_set_id, description, reference
		FROM variables
		WHERE ` + field + ` = ?
	`)
	v, err := scanVariable(c.store.DB.QueryRowContext(ctx, query, value))
	if err != nil {
		if isNotFound(c.store.MapError(err)) {
			return nil, nil
		}
		return nil, fmt.Errorf("load variable: %w", err)
	}
	if err := c.hydrateVariable(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Variables lists all variables in name order, optionally filtered by data
// type. Labels and constraints are loaded.
func (c *Catalog) Variables(ctx context.Context, dataType *metadata.DataType) ([]*metadata.Variable, error) {
	query := `
		SELECT id, name, data_type, category_set_id, description, reference
		FROM variables
	`
	var args []any
	if dataType != nil {
		query += " WHERE data_type = ?"
		args = append(args, string(*dataType))
	}
	query += " ORDER BY name"

	rows, err := c.store.DB.QueryContext(ctx, c.store.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	defer rows.Close()

	var out []*metadata.Variable
	for rows.Next() {
		v, err := scanVariable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, v := range out {
		if err := c.hydrateVariable(ctx, v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// UpdateVariable applies a partial update to the named variable. Only
// supplied fields change; switching the data type out of nominal/ordinal
// clears the category set reference.
func (c *Catalog) UpdateVariable(ctx context.Context, name string, u metadata.VariableUpdate) (*metadata.Variable, error) {
	existing, err := c.VariableByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, NotFoundError("variable", name)
	}
	if u.Empty() {
		return existing, nil
	}

	proposed := *existing
	if u.Name != nil {
		proposed.Name = *u.Name
	}
	if u.DataType != nil {
		proposed.DataType = *u.DataType
		if !u.DataType.Categorical() {
			proposed.CategorySetID = nil
		}
	}
	if u.CategorySetID != nil {
		id := *u.CategorySetID
		proposed.CategorySetID = &id
	}
	if u.Description != nil {
		proposed.Description = *u.Description
	}
	if u.Reference != nil {
		proposed.Reference = *u.Reference
	}

	result, err := validate.Variable(ctx, &proposed, existing, nil, c)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, ValidationError(result.Errors)
	}

	query := c.store.Rebind(`
		UPDATE variables
		SET name = ?, data_type = ?, category_set_id = ?, description = ?, reference = ?,
		    updated_at = ` + c.store.Dialect.NowExpr() + `
		WHERE id = ?
	`)
	if _, err := store.Exec(ctx, c.store.DB, query, proposed.Name, string(proposed.DataType), nullableID(proposed.CategorySetID), proposed.Description, proposed.Reference, existing.ID); err != nil {
		return nil, fmt.Errorf("update variable %q: %w", name, c.store.MapError(err))
	}
	return c.VariableByID(ctx, existing.ID)
}

// DeleteVariable removes the named variable and cascades over its labels and
// constraints. The category set, being shared, is left alone.
func (c *Catalog) DeleteVariable(ctx context.Context, name string) error {
	existing, err := c.VariableByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFoundError("variable", name)
	}

	tx, err := c.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := c.deleteLabelsFor(ctx, tx, metadata.OwnerVariable, existing.ID); err != nil {
		return err
	}
	if err := c.deleteConstraintsFor(ctx, tx, existing.ID); err != nil {
		return err
	}
	query := c.store.Rebind(`DELETE FROM variables WHERE id = ?`)
	if _, err := store.Exec(ctx, tx, query, existing.ID); err != nil {
		return fmt.Errorf("delete variable %q: %w", name, c.store.MapError(err))
	}
	return tx.Commit()
}

// AddVariableLabel attaches a label to the named variable, replacing any
// existing label with the same language code and purpose.
func (c *Catalog) AddVariableLabel(ctx context.Context, name string, l metadata.Label) error {
	existing, err := c.VariableByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFoundError("variable", name)
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
	return c.upsertLabel(ctx, c.store.DB, metadata.OwnerVariable, existing.ID, normalized)
}

// RemoveVariableLabel detaches a label by id, verifying ownership.
func (c *Catalog) RemoveVariableLabel(ctx context.Context, name string, labelID int64) error {
	existing, err := c.VariableByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFoundError("variable", name)
	}
	return c.removeLabel(ctx, metadata.OwnerVariable, existing.ID, labelID)
}

// SetConstraint attaches a constraint to the named variable, replacing any
// existing constraint of the same kind. The kind must be compatible with the
// variable's data type, and the resulting full constraint set must still
// validate, so an incoming bound is checked against the stored opposite one.
func (c *Catalog) SetConstraint(ctx context.Context, name string, con metadata.Constraint) error {
	existing, err := c.VariableByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFoundError("variable", name)
	}

	check := *existing
	merged := make([]metadata.Constraint, 0, len(existing.Constraints)+1)
	for _, kept := range existing.Constraints {
		if kept.Kind != con.Kind {
			merged = append(merged, kept)
		}
	}
	check.Constraints = append(merged, con)
	result, err := validate.Variable(ctx, &check, existing, nil, c)
	if err != nil {
		return err
	}
	if !result.Valid() {
		return ValidationError(result.Errors)
	}
	return c.upsertConstraint(ctx, c.store.DB, existing.ID, con)
}

// RemoveConstraint drops the variable's constraint of the given kind.
func (c *Catalog) RemoveConstraint(ctx context.Context, name string, kind metadata.ConstraintKind) error {
	existing, err := c.VariableByName(ctx, name)
	if err != nil {
		return err
	}
	if existing == nil {
		return NotFoundError("variable", name)
	}
	query := c.store.Rebind(`DELETE FROM variable_constraints WHERE variable_id = ? AND kind = ?`)
	n, err := store.Exec(ctx, c.store.DB, query, existing.ID, string(kind))
	if err != nil {
		return fmt.Errorf("delete constraint: %w", err)
	}
	if n == 0 {
		return NotFoundError("constraint", string(kind))
	}
	return nil
}

func (c *Catalog) hydrateVariable(ctx context.Context, v *metadata.Variable) error {
	labels, err := c.loadLabels(ctx, c.store.DB, metadata.OwnerVariable, v.ID)
	if err != nil {
		return err
	}
	constraints, err := c.loadConstraints(ctx, c.store.DB, v.ID)
	if err != nil {
		return err
	}
	v.Labels = labels
	v.Constraints = constraints
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVariable(row rowScanner) (*metadata.Variable, error) {
	var v metadata.Variable
	var setID sql.NullInt64
	if err := row.Scan(&v.ID, &v.Name, &v.DataType, &setID, &v.Description, &v.Reference); err != nil {
		return nil, err
	}
	if setID.Valid {
		id := setID.Int64
		v.CategorySetID = &id
	}
	return &v, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
