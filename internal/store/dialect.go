package store

import "fmt"

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "sqlite" or "postgres".
	Name() string

	// DriverName returns the database/sql driver name.
	DriverName() string

	// PositionalParams reports whether placeholders carry a position,
	// as in postgres ($1, $2). Dialects using bare "?" return false.
	PositionalParams() bool

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// NowExpr returns the SQL expression for the current timestamp.
	NowExpr() string

	// SchemaSQL returns the DDL creating all catalog tables.
	SchemaSQL() string

	// DropSQL returns the DDL dropping all catalog tables, dependents first.
	DropSQL() string

	// MapError maps a driver error to a sentinel error where recognized.
	MapError(err error) error
}

// NewDialect returns the dialect for a driver name.
func NewDialect(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}, nil
	case "postgres":
		return &PostgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
}
