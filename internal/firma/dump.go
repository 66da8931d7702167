package firma

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fhwedel/firma/internal/storage"
)

// Dump is the full content of one table. Cells are nil for SQL NULL.
type Dump struct {
	Table   string      `json:"table"`
	Columns []string    `json:"columns"`
	Rows    [][]*string `json:"rows"`
}

// DumpTable reads every row of table. Only plain identifiers naming an
// existing table of the store's schema are accepted.
func (s *Store) DumpTable(ctx context.Context, table string) (*Dump, error) {
	if err := storage.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	exists, err := s.intro.TableExists(ctx, s.schema, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoSuchTable, s.schema, table)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+s.table(table))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	dump := &Dump{Table: table, Columns: cols, Rows: [][]*string{}}

	cells := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		row := make([]*string, len(cols))
		for i, c := range cells {
			if c.Valid {
				v := c.String
				row[i] = &v
			}
		}
		dump.Rows = append(dump.Rows, row)
	}
	return dump, rows.Err()
}
