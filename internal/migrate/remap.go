package migrate

import (
	"context"
	"fmt"

	"github.com/fhwedel/firma/internal/storage"
)

// Remapper adds the foreign key column and fills it from the legacy code.
type Remapper struct {
	q       Querier
	dialect storage.Dialect
	plan    Plan
}

// NewRemapper returns a Remapper writing through q.
func NewRemapper(q Querier, d storage.Dialect, plan Plan) *Remapper {
	return &Remapper{q: q, dialect: d, plan: plan}
}

// AddColumn adds the nullable foreign key column. Callers check existence first.
func (r *Remapper) AddColumn(ctx context.Context) error {
	p := r.plan
	d := r.dialect
	_, err := r.q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s NULL",
		storage.Qualify(d, p.Schema, p.EntityTable), d.Quote(p.ForeignKeyColumn), p.ForeignKeyType))
	if err != nil {
		return fmt.Errorf("failed to add %s column: %w", p.ForeignKeyColumn, err)
	}
	return nil
}

// Remap sets the foreign key of every row whose key is still NULL to the id
// of the reference row with the same (trimmed, case-folded) code. Rows that
// already carry a key are never touched, so corrections made between runs
// survive. Rows without a matching code stay NULL. Returns the number of
// rows resolved by this call.
func (r *Remapper) Remap(ctx context.Context) (int64, error) {
	p := r.plan
	d := r.dialect
	match := fmt.Sprintf("FROM %s ref WHERE LOWER(TRIM(ref.%s)) = LOWER(TRIM(e.%s))",
		storage.Qualify(d, p.Schema, p.ReferenceTable), d.Quote(p.ReferenceCode), d.Quote(p.LegacyColumn))
	stmt := fmt.Sprintf(`UPDATE %s AS e
		SET %s = (SELECT ref.%s %s)
		WHERE e.%s IS NULL
		  AND EXISTS (SELECT 1 %s)`,
		storage.Qualify(d, p.Schema, p.EntityTable),
		d.Quote(p.ForeignKeyColumn), d.Quote(p.ReferenceKey), match,
		d.Quote(p.ForeignKeyColumn),
		match,
	)
	res, err := r.q.ExecContext(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("failed to remap %s to %s: %w", p.LegacyColumn, p.ForeignKeyColumn, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read remapped row count: %w", err)
	}
	return n, nil
}

// Unresolved counts rows whose foreign key is still NULL.
func (r *Remapper) Unresolved(ctx context.Context) (int64, error) {
	p := r.plan
	d := r.dialect
	var n int64
	err := r.q.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL",
		storage.Qualify(d, p.Schema, p.EntityTable), d.Quote(p.ForeignKeyColumn))).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unresolved %s rows: %w", p.EntityTable, err)
	}
	return n, nil
}

// OrphanedKeys returns the distinct non-NULL foreign key values that match
// neither a row of the reference table nor an id in known. When the
// reference table does not exist yet every non-NULL key is a candidate.
func (r *Remapper) OrphanedKeys(ctx context.Context, referenceExists bool, known map[int64]bool) ([]int64, error) {
	p := r.plan
	d := r.dialect
	var query string
	if referenceExists {
		query = fmt.Sprintf(`SELECT DISTINCT e.%s
			FROM %s e
			LEFT JOIN %s ref ON ref.%s = e.%s
			WHERE e.%s IS NOT NULL AND ref.%s IS NULL
			ORDER BY e.%s`,
			d.Quote(p.ForeignKeyColumn),
			storage.Qualify(d, p.Schema, p.EntityTable),
			storage.Qualify(d, p.Schema, p.ReferenceTable), d.Quote(p.ReferenceKey), d.Quote(p.ForeignKeyColumn),
			d.Quote(p.ForeignKeyColumn), d.Quote(p.ReferenceKey),
			d.Quote(p.ForeignKeyColumn))
	} else {
		query = fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s",
			d.Quote(p.ForeignKeyColumn), storage.Qualify(d, p.Schema, p.EntityTable),
			d.Quote(p.ForeignKeyColumn), d.Quote(p.ForeignKeyColumn))
	}

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to look for orphaned %s values: %w", p.ForeignKeyColumn, err)
	}
	defer rows.Close()

	var orphans []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s value: %w", p.ForeignKeyColumn, err)
		}
		if !known[id] {
			orphans = append(orphans, id)
		}
	}
	return orphans, rows.Err()
}
