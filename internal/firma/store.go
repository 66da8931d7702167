// Package firma reads and writes the personnel tables of the firma database.
//
// Every statement is parameterized; identifiers come from constants or pass
// storage.ValidateIdentifier. The store works on both sides of the insurer
// migration: it asks the catalog whether personal still carries the legacy
// krankenkasse code or already references krankenversicherung via kkid.
package firma

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fhwedel/firma/internal/migrate"
	"github.com/fhwedel/firma/internal/storage"
)

// ErrNotMigrated is returned by operations that need the kkid reference.
var ErrNotMigrated = errors.New("personal has not been migrated to krankenversicherung yet")

// ErrNoSuchTable is returned by DumpTable for tables missing from the schema.
var ErrNoSuchTable = errors.New("no such table")

// Layout is which side of the insurer migration the schema is on.
type Layout int

const (
	// LayoutLegacy: personal.krankenkasse holds the insurer code.
	LayoutLegacy Layout = iota
	// LayoutMigrated: personal.kkid references krankenversicherung.
	LayoutMigrated
)

func (l Layout) String() string {
	if l == LayoutMigrated {
		return "migrated"
	}
	return "legacy"
}

// Store is the data access layer over one firma schema.
type Store struct {
	db     *storage.DB
	schema string
	plan   migrate.Plan
	intro  *migrate.Introspector
	logger *zap.Logger
}

// NewStore returns a Store for schema. An empty schema uses the dialect default.
func NewStore(db *storage.DB, schema string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if schema == "" {
		schema = db.Dialect().DefaultSchema(db.Database())
	}
	return &Store{
		db:     db,
		schema: schema,
		plan:   migrate.DefaultPlan().WithSchema(schema),
		intro:  migrate.NewIntrospector(db, db.Dialect()),
		logger: logger,
	}
}

// Schema returns the schema the store works on.
func (s *Store) Schema() string { return s.schema }

func (s *Store) table(name string) string {
	return storage.Qualify(s.db.Dialect(), s.schema, name)
}

func (s *Store) ph(n int) string {
	return s.db.Dialect().Placeholder(n)
}

// Layout inspects personal and reports which insurer column it carries.
// The legacy column wins while both exist, since it is still the source of truth.
func (s *Store) Layout(ctx context.Context) (Layout, error) {
	p := s.plan
	legacy, err := s.intro.ColumnExists(ctx, s.schema, p.EntityTable, p.LegacyColumn)
	if err != nil {
		return LayoutLegacy, err
	}
	if legacy {
		return LayoutLegacy, nil
	}
	fk, err := s.intro.ColumnExists(ctx, s.schema, p.EntityTable, p.ForeignKeyColumn)
	if err != nil {
		return LayoutLegacy, err
	}
	if !fk {
		return LayoutLegacy, fmt.Errorf("%s has neither %s nor %s", p.EntityTable, p.LegacyColumn, p.ForeignKeyColumn)
	}
	return LayoutMigrated, nil
}
