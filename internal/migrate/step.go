package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/fhwedel/firma/internal/storage"
)

// State is a position in the migration state machine. Every step has a
// state named after it; Committed and RolledBack are terminal.
type State string

const (
	StateBegin                 State = "Begin"
	StateCleanupStaleArtifacts State = "CleanupStaleArtifacts"
	StateSeedReference         State = "SeedReference"
	StateEnsureColumn          State = "EnsureColumn"
	StateRemap                 State = "Remap"
	StateDropLegacyColumn      State = "DropLegacyColumn"
	StateAddForeignKey         State = "AddForeignKey"
	StateMaybeTightenNotNull   State = "MaybeTightenNotNull"
	StateCommitted             State = "Committed"
	StateRolledBack            State = "RolledBack"
)

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// step is one ordered unit of the migration. pending is a read-only
// precondition; apply is only called when pending returned true.
type step struct {
	name    State
	pending func(ctx context.Context, r *run) (bool, string, error)
	apply   func(ctx context.Context, r *run) (string, error)
}

// run carries the per-transaction collaborators and what earlier steps learned.
type run struct {
	dialect   storage.Dialect
	seeds     SeedSet
	intro     *Introspector
	seeder    *Seeder
	remapper  *Remapper
	finalizer *Finalizer
	plan      Plan
	result    *Result

	staleTables []string
	remapped    bool
}

// steps returns the migration in its fixed order. The order is a correctness
// requirement: the legacy column is the only source for the remap, so it is
// dropped strictly after it.
func steps() []step {
	return []step{
		{name: StateCleanupStaleArtifacts, pending: cleanupPending, apply: cleanupApply},
		{name: StateSeedReference, pending: seedPending, apply: seedApply},
		{name: StateEnsureColumn, pending: ensureColumnPending, apply: ensureColumnApply},
		{name: StateRemap, pending: remapPending, apply: remapApply},
		{name: StateDropLegacyColumn, pending: dropLegacyPending, apply: dropLegacyApply},
		{name: StateAddForeignKey, pending: addForeignKeyPending, apply: addForeignKeyApply},
		{name: StateMaybeTightenNotNull, pending: tightenPending, apply: tightenApply},
	}
}

// StepOrder lists the step states in execution order.
func StepOrder() []State {
	all := steps()
	out := make([]State, len(all))
	for i, s := range all {
		out[i] = s.name
	}
	return out
}

func cleanupPending(ctx context.Context, r *run) (bool, string, error) {
	r.staleTables = r.staleTables[:0]
	for _, t := range r.plan.StaleTables {
		exists, err := r.intro.TableExists(ctx, r.plan.Schema, t)
		if err != nil {
			return false, "", err
		}
		if exists {
			r.staleTables = append(r.staleTables, t)
		}
	}
	if len(r.staleTables) == 0 {
		return false, "no stale swap tables", nil
	}
	return true, "stale swap tables: " + strings.Join(r.staleTables, ", "), nil
}

func cleanupApply(ctx context.Context, r *run) (string, error) {
	for _, t := range r.staleTables {
		if err := r.finalizer.DropTable(ctx, t); err != nil {
			return "", err
		}
	}
	return "dropped " + strings.Join(r.staleTables, ", "), nil
}

// Seeding is an upsert and always runs.
func seedPending(context.Context, *run) (bool, string, error) {
	return true, "upsert seed rows", nil
}

func seedApply(ctx context.Context, r *run) (string, error) {
	// Without transactional DDL nothing after this point can be undone, so
	// keys that AddForeignKey would reject must stop the run before any write.
	if !r.dialect.TransactionalDDL() {
		if err := checkOrphanedKeys(ctx, r); err != nil {
			return "", err
		}
	}
	report, err := r.seeder.Seed(ctx)
	if err != nil {
		return "", err
	}
	r.result.Seed = report
	detail := fmt.Sprintf("%d inserted, %d updated", report.Inserted, report.Updated)
	if report.CreatedTable {
		detail = "created " + r.plan.ReferenceTable + "; " + detail
	}
	return detail, nil
}

// checkOrphanedKeys fails with ErrConstraintViolation when the foreign key
// column already holds values that are neither in the reference table nor
// in the seed set.
func checkOrphanedKeys(ctx context.Context, r *run) error {
	p := r.plan
	exists, err := r.intro.ColumnExists(ctx, p.Schema, p.EntityTable, p.ForeignKeyColumn)
	if err != nil || !exists {
		return err
	}
	refExists, err := r.intro.TableExists(ctx, p.Schema, p.ReferenceTable)
	if err != nil {
		return err
	}
	known := make(map[int64]bool, r.seeds.Len())
	for _, row := range r.seeds.Rows() {
		known[row.ID] = true
	}
	orphans, err := r.remapper.OrphanedKeys(ctx, refExists, known)
	if err != nil {
		return err
	}
	if len(orphans) > 0 {
		return fmt.Errorf("%w: %s.%s holds %v, unknown to %s and the seed set",
			ErrConstraintViolation, p.EntityTable, p.ForeignKeyColumn, orphans, p.ReferenceTable)
	}
	return nil
}

func ensureColumnPending(ctx context.Context, r *run) (bool, string, error) {
	p := r.plan
	exists, err := r.intro.ColumnExists(ctx, p.Schema, p.EntityTable, p.ForeignKeyColumn)
	if err != nil {
		return false, "", err
	}
	if exists {
		return false, p.ForeignKeyColumn + " already present", nil
	}
	return true, "add " + p.ForeignKeyColumn, nil
}

func ensureColumnApply(ctx context.Context, r *run) (string, error) {
	if err := r.remapper.AddColumn(ctx); err != nil {
		return "", err
	}
	return "added " + r.plan.ForeignKeyColumn, nil
}

func remapPending(ctx context.Context, r *run) (bool, string, error) {
	p := r.plan
	exists, err := r.intro.ColumnExists(ctx, p.Schema, p.EntityTable, p.LegacyColumn)
	if err != nil {
		return false, "", err
	}
	if !exists {
		return false, p.LegacyColumn + " already dropped", nil
	}
	return true, "map " + p.LegacyColumn + " to " + p.ForeignKeyColumn, nil
}

func remapApply(ctx context.Context, r *run) (string, error) {
	n, err := r.remapper.Remap(ctx)
	if err != nil {
		return "", err
	}
	r.remapped = true
	r.result.Resolved = n
	return fmt.Sprintf("%d rows resolved", n), nil
}

func dropLegacyPending(ctx context.Context, r *run) (bool, string, error) {
	p := r.plan
	exists, err := r.intro.ColumnExists(ctx, p.Schema, p.EntityTable, p.LegacyColumn)
	if err != nil {
		return false, "", err
	}
	if !exists {
		return false, p.LegacyColumn + " already dropped", nil
	}
	return true, "drop " + p.LegacyColumn, nil
}

func dropLegacyApply(ctx context.Context, r *run) (string, error) {
	if !r.remapped {
		return "", fmt.Errorf("refusing to drop %s before it was remapped in this run", r.plan.LegacyColumn)
	}
	if err := r.finalizer.DropLegacyColumn(ctx); err != nil {
		return "", err
	}
	return "dropped " + r.plan.LegacyColumn, nil
}

func addForeignKeyPending(ctx context.Context, r *run) (bool, string, error) {
	p := r.plan
	exists, err := r.intro.ForeignKeyExists(ctx, p.Schema, p.EntityTable, p.ConstraintName)
	if err != nil {
		return false, "", err
	}
	if exists {
		return false, p.ConstraintName + " already present", nil
	}
	return true, "add " + p.ConstraintName, nil
}

func addForeignKeyApply(ctx context.Context, r *run) (string, error) {
	if err := r.finalizer.AddForeignKey(ctx); err != nil {
		return "", err
	}
	return "added " + r.plan.ConstraintName, nil
}

func tightenPending(ctx context.Context, r *run) (bool, string, error) {
	p := r.plan
	exists, err := r.intro.ColumnExists(ctx, p.Schema, p.EntityTable, p.ForeignKeyColumn)
	if err != nil {
		return false, "", err
	}
	if !exists {
		// Only reachable from Status: EnsureColumn has not run yet.
		return true, p.ForeignKeyColumn + " not added yet", nil
	}
	unresolved, err := r.remapper.Unresolved(ctx)
	if err != nil {
		return false, "", err
	}
	r.result.Unresolved = unresolved
	if unresolved > 0 {
		return false, fmt.Sprintf("%d unresolved rows, %s stays nullable", unresolved, p.ForeignKeyColumn), nil
	}
	nullable, err := r.intro.ColumnNullable(ctx, p.Schema, p.EntityTable, p.ForeignKeyColumn)
	if err != nil {
		return false, "", err
	}
	if !nullable {
		r.result.NotNull = true
		return false, p.ForeignKeyColumn + " already NOT NULL", nil
	}
	return true, "set " + p.ForeignKeyColumn + " NOT NULL", nil
}

func tightenApply(ctx context.Context, r *run) (string, error) {
	if err := r.finalizer.SetNotNull(ctx); err != nil {
		return "", err
	}
	r.result.NotNull = true
	return r.plan.ForeignKeyColumn + " set NOT NULL", nil
}
