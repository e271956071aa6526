package store

import (
	"fmt"
	"strings"
)

// PostgresDialect implements Dialect for PostgreSQL via pgx/stdlib.
// It exists for catalogs shared from a database server; the sqlite dialect
// remains the default for local single-user use.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) PositionalParams() bool { return true }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) NowExpr() string { return "now()" }

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	// With pgx/stdlib, the underlying error message includes the PG code
	errStr := err.Error()
	if strings.Contains(errStr, "23505") || strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	if strings.Contains(errStr, "23503") || strings.Contains(errStr, "foreign key constraint") {
		return fmt.Errorf("%w: %w", ErrReferenced, err)
	}
	return err
}

func (d *PostgresDialect) SchemaSQL() string {
	return postgresSchemaSQL
}

func (d *PostgresDialect) DropSQL() string {
	return dropSQL
}

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS category_sets (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    created_at  TIMESTAMPTZ DEFAULT now(),
    updated_at  TIMESTAMPTZ DEFAULT now()
);

CREATE TABLE IF NOT EXISTS categories (
    id              BIGSERIAL PRIMARY KEY,
    category_set_id BIGINT NOT NULL REFERENCES category_sets(id) ON DELETE CASCADE,
    name            TEXT NOT NULL,
    created_at      TIMESTAMPTZ DEFAULT now(),
    updated_at      TIMESTAMPTZ DEFAULT now(),
    UNIQUE (category_set_id, name)
);

CREATE TABLE IF NOT EXISTS variables (
    id              BIGSERIAL PRIMARY KEY,
    name            TEXT NOT NULL UNIQUE,
    data_type       TEXT NOT NULL,
    category_set_id BIGINT REFERENCES category_sets(id),
    description     TEXT NOT NULL DEFAULT '',
    reference       TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ DEFAULT now(),
    updated_at      TIMESTAMPTZ DEFAULT now(),
    CHECK (
        (data_type IN ('nominal', 'ordinal') AND category_set_id IS NOT NULL) OR
        (data_type IN ('discrete', 'continuous', 'text') AND category_set_id IS NULL)
    )
);

CREATE TABLE IF NOT EXISTS labels (
    id            BIGSERIAL PRIMARY KEY,
    entity_type   TEXT NOT NULL CHECK (entity_type IN ('variable', 'category')),
    entity_id     BIGINT NOT NULL,
    language_code TEXT NOT NULL,
    purpose       TEXT NOT NULL DEFAULT '',
    text          TEXT NOT NULL,
    created_at    TIMESTAMPTZ DEFAULT now(),
    updated_at    TIMESTAMPTZ DEFAULT now(),
    UNIQUE (entity_type, entity_id, language_code, purpose)
);

CREATE TABLE IF NOT EXISTS variable_constraints (
    id          BIGSERIAL PRIMARY KEY,
    variable_id BIGINT NOT NULL REFERENCES variables(id) ON DELETE CASCADE,
    kind        TEXT NOT NULL,
    value       DOUBLE PRECISION,
    pattern     TEXT,
    created_at  TIMESTAMPTZ DEFAULT now(),
    updated_at  TIMESTAMPTZ DEFAULT now(),
    UNIQUE (variable_id, kind)
);
`
