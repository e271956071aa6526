package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"varman/internal/metadata"
	"varman/internal/store"
)

// upsertConstraint writes a constraint row. At most one constraint of each
// kind exists per variable; re-adding a kind replaces its parameters.
func (c *Catalog) upsertConstraint(ctx context.Context, q store.Querier, variableID int64, con metadata.Constraint) error {
	var value sql.NullFloat64
	var pattern sql.NullString
	switch con.Kind {
	case metadata.MinValue, metadata.MaxValue:
		value = sql.NullFloat64{Float64: con.Value, Valid: true}
	case metadata.Regex:
		pattern = sql.NullString{String: con.Pattern, Valid: true}
	}
	query := c.store.Rebind(`
		INSERT INTO variable_constraints (variable_id, kind, value, pattern)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (variable_id, kind)
		DO UPDATE SET value = excluded.value, pattern = excluded.pattern, updated_at = ` + c.store.Dialect.NowExpr() + `
	`)
	if _, err := q.ExecContext(ctx, query, variableID, string(con.Kind), value, pattern); err != nil {
		return fmt.Errorf("upsert constraint: %w", c.store.MapError(err))
	}
	return nil
}

// loadConstraints returns a variable's constraints in insertion (id) order.
func (c *Catalog) loadConstraints(ctx context.Context, q store.Querier, variableID int64) ([]metadata.Constraint, error) {
	query := c.store.Rebind(`
		SELECT kind, value, pattern
		FROM variable_constraints
		WHERE variable_id = ?
		ORDER BY id
	`)
	rows, err := q.QueryContext(ctx, query, variableID)
	if err != nil {
		return nil, fmt.Errorf("load constraints: %w", err)
	}
	defer rows.Close()

	var constraints []metadata.Constraint
	for rows.Next() {
		var kind string
		var value sql.NullFloat64
		var pattern sql.NullString
		if err := rows.Scan(&kind, &value, &pattern); err != nil {
			return nil, fmt.Errorf("scan constraint: %w", err)
		}
		constraints = append(constraints, metadata.Constraint{
			Kind:    metadata.ConstraintKind(kind),
			Value:   value.Float64,
			Pattern: pattern.String,
		})
	}
	return constraints, rows.Err()
}

func (c *Catalog) deleteConstraintsFor(ctx context.Context, q store.Querier, variableID int64) error {
	query := c.store.Rebind(`DELETE FROM variable_constraints WHERE variable_id = ?`)
	if _, err := store.Exec(ctx, q, query, variableID); err != nil {
		return fmt.Errorf("delete constraints: %w", err)
	}
	return nil
}
