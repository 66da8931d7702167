package migrate

import (
	"fmt"
	"strings"

	"github.com/fhwedel/firma/internal/storage"
)

// Plan names every table, column and constraint the migration touches.
// The engine only knows the shape "legacy code column -> reference table +
// foreign key"; the plan binds that shape to a concrete schema.
type Plan struct {
	Schema string // Schema (MySQL: database) holding both tables

	EntityTable  string // Table being migrated
	EntityKey    string // Integer primary key of the entity table
	LegacyColumn string // Fixed-width code column that gets replaced

	ForeignKeyColumn string // New nullable column referencing the reference table
	ForeignKeyType   string // SQL type of the foreign key column

	ReferenceTable string // Lookup table created and seeded by the migration
	ReferenceKey   string
	ReferenceCode  string
	ReferenceName  string

	ConstraintName string // Name of the foreign key constraint

	CodeWidth int // Width of the code columns (CHAR(n))
	NameWidth int // Width of the reference name column (VARCHAR(n))

	// StaleTables are leftovers of the old rename-swap tool. They are dropped
	// before any structural step.
	StaleTables []string
}

// DefaultPlan returns the plan for the firma personnel database:
// personal.krankenkasse -> krankenversicherung(kkid) via personal.kkid.
func DefaultPlan() Plan {
	return Plan{
		EntityTable:      "personal",
		EntityKey:        "pnr",
		LegacyColumn:     "krankenkasse",
		ForeignKeyColumn: "kkid",
		ForeignKeyType:   "INT",
		ReferenceTable:   "krankenversicherung",
		ReferenceKey:     "kkid",
		ReferenceCode:    "kuerzel",
		ReferenceName:    "name",
		ConstraintName:   "fk_kk",
		CodeWidth:        3,
		NameWidth:        100,
		StaleTables:      []string{"personal_alt", "personal_neu"},
	}
}

var allowedKeyTypes = map[string]bool{
	"INT":     true,
	"INTEGER": true,
	"BIGINT":  true,
}

// Validate checks that every name is a plain identifier and that the sizes
// make sense. Names end up in DDL, so this runs before anything touches the database.
func (p Plan) Validate() error {
	names := map[string]string{
		"schema":             p.Schema,
		"entity table":       p.EntityTable,
		"entity key":         p.EntityKey,
		"legacy column":      p.LegacyColumn,
		"foreign key column": p.ForeignKeyColumn,
		"reference table":    p.ReferenceTable,
		"reference key":      p.ReferenceKey,
		"reference code":     p.ReferenceCode,
		"reference name":     p.ReferenceName,
		"constraint name":    p.ConstraintName,
	}
	for what, name := range names {
		if err := storage.ValidateIdentifier(name); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidPlan, what, err)
		}
	}
	for _, t := range p.StaleTables {
		if err := storage.ValidateIdentifier(t); err != nil {
			return fmt.Errorf("%w: stale table: %v", ErrInvalidPlan, err)
		}
		if t == p.EntityTable || t == p.ReferenceTable {
			return fmt.Errorf("%w: stale table %q is a live table", ErrInvalidPlan, t)
		}
	}
	if p.LegacyColumn == p.ForeignKeyColumn {
		return fmt.Errorf("%w: legacy and foreign key column are both %q", ErrInvalidPlan, p.LegacyColumn)
	}
	if !allowedKeyTypes[strings.ToUpper(p.ForeignKeyType)] {
		return fmt.Errorf("%w: unsupported foreign key type %q", ErrInvalidPlan, p.ForeignKeyType)
	}
	if p.CodeWidth <= 0 || p.NameWidth <= 0 {
		return fmt.Errorf("%w: column widths must be positive", ErrInvalidPlan)
	}
	return nil
}

// WithSchema returns a copy of p bound to schema.
func (p Plan) WithSchema(schema string) Plan {
	p.Schema = schema
	p.StaleTables = append([]string(nil), p.StaleTables...)
	return p
}
