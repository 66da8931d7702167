package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fhwedel/firma/internal/storage"
)

// Querier is the subset of *sql.DB and *sql.Tx the migration needs.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Introspector answers catalog questions through information_schema.
// All queries are scoped by schema and table and never mutate state.
type Introspector struct {
	q       Querier
	dialect storage.Dialect
}

// NewIntrospector returns an Introspector reading through q.
func NewIntrospector(q Querier, d storage.Dialect) *Introspector {
	return &Introspector{q: q, dialect: d}
}

// ColumnExists reports whether table.column exists in schema.
func (i *Introspector) ColumnExists(ctx context.Context, schema, table, column string) (bool, error) {
	n, err := i.count(ctx, `
		SELECT COUNT(*)
		FROM information_schema.columns
		WHERE table_schema = `+i.dialect.Placeholder(1)+`
		  AND table_name = `+i.dialect.Placeholder(2)+`
		  AND column_name = `+i.dialect.Placeholder(3),
		schema, table, column)
	if err != nil {
		return false, fmt.Errorf("%w: column %s.%s.%s: %w", ErrIntrospection, schema, table, column, err)
	}
	return n > 0, nil
}

// ForeignKeyExists reports whether a foreign key constraint named constraint
// exists on table. Only the name is compared.
func (i *Introspector) ForeignKeyExists(ctx context.Context, schema, table, constraint string) (bool, error) {
	n, err := i.count(ctx, `
		SELECT COUNT(*)
		FROM information_schema.table_constraints
		WHERE table_schema = `+i.dialect.Placeholder(1)+`
		  AND table_name = `+i.dialect.Placeholder(2)+`
		  AND constraint_name = `+i.dialect.Placeholder(3)+`
		  AND constraint_type = 'FOREIGN KEY'`,
		schema, table, constraint)
	if err != nil {
		return false, fmt.Errorf("%w: constraint %s on %s.%s: %w", ErrIntrospection, constraint, schema, table, err)
	}
	return n > 0, nil
}

// TableExists reports whether table exists in schema.
func (i *Introspector) TableExists(ctx context.Context, schema, table string) (bool, error) {
	n, err := i.count(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = `+i.dialect.Placeholder(1)+`
		  AND table_name = `+i.dialect.Placeholder(2),
		schema, table)
	if err != nil {
		return false, fmt.Errorf("%w: table %s.%s: %w", ErrIntrospection, schema, table, err)
	}
	return n > 0, nil
}

// ColumnNullable reports whether table.column accepts NULL. A missing column
// is an error.
func (i *Introspector) ColumnNullable(ctx context.Context, schema, table, column string) (bool, error) {
	var nullable string
	err := i.q.QueryRowContext(ctx, `
		SELECT is_nullable
		FROM information_schema.columns
		WHERE table_schema = `+i.dialect.Placeholder(1)+`
		  AND table_name = `+i.dialect.Placeholder(2)+`
		  AND column_name = `+i.dialect.Placeholder(3),
		schema, table, column).Scan(&nullable)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: column %s.%s.%s does not exist", ErrIntrospection, schema, table, column)
	}
	if err != nil {
		return false, fmt.Errorf("%w: nullability of %s.%s.%s: %w", ErrIntrospection, schema, table, column, err)
	}
	return nullable == "YES", nil
}

func (i *Introspector) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := i.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
