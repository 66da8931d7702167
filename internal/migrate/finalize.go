package migrate

import (
	"context"
	"fmt"

	"github.com/fhwedel/firma/internal/storage"
)

// Finalizer performs the structural tail of the migration: dropping the
// legacy column, adding the foreign key and tightening NOT NULL.
type Finalizer struct {
	q       Querier
	dialect storage.Dialect
	plan    Plan
}

// NewFinalizer returns a Finalizer writing through q.
func NewFinalizer(q Querier, d storage.Dialect, plan Plan) *Finalizer {
	return &Finalizer{q: q, dialect: d, plan: plan}
}

// DropLegacyColumn drops the legacy code column.
func (f *Finalizer) DropLegacyColumn(ctx context.Context) error {
	p := f.plan
	d := f.dialect
	_, err := f.q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s",
		storage.Qualify(d, p.Schema, p.EntityTable), d.Quote(p.LegacyColumn)))
	if err != nil {
		return fmt.Errorf("failed to drop %s column: %w", p.LegacyColumn, err)
	}
	return nil
}

// AddForeignKey adds the named constraint. Orphaned keys make the database
// reject the statement; that error is returned as is, wrapped in
// ErrConstraintViolation.
func (f *Finalizer) AddForeignKey(ctx context.Context) error {
	p := f.plan
	d := f.dialect
	_, err := f.q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		storage.Qualify(d, p.Schema, p.EntityTable),
		d.Quote(p.ConstraintName),
		d.Quote(p.ForeignKeyColumn),
		storage.Qualify(d, p.Schema, p.ReferenceTable),
		d.Quote(p.ReferenceKey)))
	if err != nil {
		return fmt.Errorf("%w: adding %s: %w", ErrConstraintViolation, p.ConstraintName, err)
	}
	return nil
}

// SetNotNull tightens the foreign key column. Only valid once no NULL keys remain.
func (f *Finalizer) SetNotNull(ctx context.Context) error {
	p := f.plan
	d := f.dialect
	stmt := d.SetNotNull(storage.Qualify(d, p.Schema, p.EntityTable), p.ForeignKeyColumn, p.ForeignKeyType)
	if _, err := f.q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: setting %s NOT NULL: %w", ErrConstraintViolation, p.ForeignKeyColumn, err)
	}
	return nil
}

// DropTable drops a leftover table of the old rename-swap strategy.
func (f *Finalizer) DropTable(ctx context.Context, table string) error {
	if table == f.plan.EntityTable || table == f.plan.ReferenceTable {
		return fmt.Errorf("refusing to drop live table %s", table)
	}
	_, err := f.q.ExecContext(ctx, "DROP TABLE IF EXISTS "+storage.Qualify(f.dialect, f.plan.Schema, table))
	if err != nil {
		return fmt.Errorf("failed to drop stale table %s: %w", table, err)
	}
	return nil
}
