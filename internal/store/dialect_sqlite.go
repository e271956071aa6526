package store

import (
	"fmt"
	"strings"
)

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) PositionalParams() bool { return false }

func (d *SQLiteDialect) Placeholder(index int) string {
	return "?"
}

func (d *SQLiteDialect) NowExpr() string { return "datetime('now')" }

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	if strings.Contains(errStr, "FOREIGN KEY constraint failed") {
		return fmt.Errorf("%w: %w", ErrReferenced, err)
	}
	return err
}

func (d *SQLiteDialect) SchemaSQL() string {
	return sqliteSchemaSQL
}

func (d *SQLiteDialect) DropSQL() string {
	return dropSQL
}

// Label ownership is polymorphic (entity_type + entity_id), so label cascade
// on variable/category deletion is performed by the catalog, not by an FK.
// variables.category_set_id carries no cascade: deleting a referenced set
// must fail.
const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS category_sets (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    name        TEXT NOT NULL UNIQUE,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS categories (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    category_set_id INTEGER NOT NULL REFERENCES category_sets(id) ON DELETE CASCADE,
    name            TEXT NOT NULL,
    created_at      TEXT DEFAULT (datetime('now')),
    updated_at      TEXT DEFAULT (datetime('now')),
    UNIQUE (category_set_id, name)
);

CREATE TABLE IF NOT EXISTS variables (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    name            TEXT NOT NULL UNIQUE,
    data_type       TEXT NOT NULL,
    category_set_id INTEGER REFERENCES category_sets(id),
    description     TEXT NOT NULL DEFAULT '',
    reference       TEXT NOT NULL DEFAULT '',
    created_at      TEXT DEFAULT (datetime('now')),
    updated_at      TEXT DEFAULT (datetime('now')),
    CHECK (
        (data_type IN ('nominal', 'ordinal') AND category_set_id IS NOT NULL) OR
        (data_type IN ('discrete', 'continuous', 'text') AND category_set_id IS NULL)
    )
);

CREATE TABLE IF NOT EXISTS labels (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    entity_type   TEXT NOT NULL CHECK (entity_type IN ('variable', 'category')),
    entity_id     INTEGER NOT NULL,
    language_code TEXT NOT NULL,
    purpose       TEXT NOT NULL DEFAULT '',
    text          TEXT NOT NULL,
    created_at    TEXT DEFAULT (datetime('now')),
    updated_at    TEXT DEFAULT (datetime('now')),
    UNIQUE (entity_type, entity_id, language_code, purpose)
);

CREATE TABLE IF NOT EXISTS variable_constraints (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    variable_id INTEGER NOT NULL REFERENCES variables(id) ON DELETE CASCADE,
    kind        TEXT NOT NULL,
    value       REAL,
    pattern     TEXT,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now')),
    UNIQUE (variable_id, kind)
);
`

const dropSQL = `
DROP TABLE IF EXISTS variable_constraints;
DROP TABLE IF EXISTS labels;
DROP TABLE IF EXISTS variables;
DROP TABLE IF EXISTS categories;
DROP TABLE IF EXISTS category_sets;
`
