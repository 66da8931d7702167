package migrate

import (
	"context"
	"fmt"
	"slices"

	"github.com/fhwedel/firma/internal/storage"
)

// SeedReport summarizes one seeding pass.
type SeedReport struct {
	CreatedTable bool `json:"created_table"`
	Inserted     int  `json:"inserted"`
	Updated      int  `json:"updated"`
}

// Seeder makes sure the reference table exists and holds the seed set.
// Seeding is an upsert by id, so it runs unconditionally on every invocation.
type Seeder struct {
	q       Querier
	dialect storage.Dialect
	intro   *Introspector
	plan    Plan
	seeds   SeedSet
}

// NewSeeder returns a Seeder writing through q.
func NewSeeder(q Querier, d storage.Dialect, plan Plan, seeds SeedSet) *Seeder {
	return &Seeder{q: q, dialect: d, intro: NewIntrospector(q, d), plan: plan, seeds: seeds}
}

// Seed creates the reference table if needed, rejects seeds that would
// re-key existing rows, and upserts every seed row.
func (s *Seeder) Seed(ctx context.Context) (SeedReport, error) {
	var report SeedReport

	created, err := s.EnsureTable(ctx)
	if err != nil {
		return report, err
	}
	report.CreatedTable = created

	existing, err := s.existingRows(ctx)
	if err != nil {
		return report, err
	}
	if err := checkSeedConflicts(s.seeds, existing); err != nil {
		return report, err
	}

	p := s.plan
	stmt := s.dialect.Upsert(
		storage.Qualify(s.dialect, p.Schema, p.ReferenceTable),
		p.ReferenceKey,
		[]string{p.ReferenceKey, p.ReferenceCode, p.ReferenceName},
		[]string{p.ReferenceName},
	)
	for _, r := range s.seeds.Rows() {
		if _, err := s.q.ExecContext(ctx, stmt, r.ID, r.Code, r.Name); err != nil {
			return report, fmt.Errorf("failed to upsert reference row %d (%s): %w", r.ID, r.Code, err)
		}
		if _, ok := existing[r.ID]; ok {
			report.Updated++
		} else {
			report.Inserted++
		}
	}
	return report, nil
}

// EnsureTable creates the reference table when it does not exist yet.
func (s *Seeder) EnsureTable(ctx context.Context) (bool, error) {
	p := s.plan
	exists, err := s.intro.TableExists(ctx, p.Schema, p.ReferenceTable)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	d := s.dialect
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s INT NOT NULL,
		%s CHAR(%d) NOT NULL,
		%s VARCHAR(%d) NOT NULL,
		PRIMARY KEY (%s),
		CONSTRAINT %s UNIQUE (%s)
	)`,
		storage.Qualify(d, p.Schema, p.ReferenceTable),
		d.Quote(p.ReferenceKey),
		d.Quote(p.ReferenceCode), p.CodeWidth,
		d.Quote(p.ReferenceName), p.NameWidth,
		d.Quote(p.ReferenceKey),
		d.Quote("uq_"+p.ReferenceTable+"_"+p.ReferenceCode), d.Quote(p.ReferenceCode),
	)
	if _, err := s.q.ExecContext(ctx, stmt); err != nil {
		return false, fmt.Errorf("failed to create %s table: %w", p.ReferenceTable, err)
	}
	return true, nil
}

// existingRows returns id -> code of the rows already in the reference table.
func (s *Seeder) existingRows(ctx context.Context) (map[int64]string, error) {
	p := s.plan
	d := s.dialect
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf("SELECT %s, %s FROM %s",
		d.Quote(p.ReferenceKey), d.Quote(p.ReferenceCode), storage.Qualify(d, p.Schema, p.ReferenceTable)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.ReferenceTable, err)
	}
	defer rows.Close()

	existing := make(map[int64]string)
	for rows.Next() {
		var id int64
		var code string
		if err := rows.Scan(&id, &code); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", p.ReferenceTable, err)
		}
		existing[id] = code
	}
	return existing, rows.Err()
}

// checkSeedConflicts rejects seeds that would change the code of an existing
// id or reuse an existing code under another id. Existing rows whose codes
// only differ in case or padding are rejected too: the remap could not pick
// one of them.
func checkSeedConflicts(seeds SeedSet, existing map[int64]string) error {
	ids := make([]int64, 0, len(existing))
	for id := range existing {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	byCode := make(map[string]int64, len(existing))
	for _, id := range ids {
		code := normalizeCode(existing[id])
		if other, ok := byCode[code]; ok {
			return fmt.Errorf("%w: ids %d and %d share code %q", ErrSeedConflict, other, id, code)
		}
		byCode[code] = id
	}
	for _, r := range seeds.Rows() {
		code := normalizeCode(r.Code)
		if current, ok := existing[r.ID]; ok && normalizeCode(current) != code {
			return fmt.Errorf("%w: id %d has code %q, seed wants %q", ErrSeedConflict, r.ID, current, r.Code)
		}
		if owner, ok := byCode[code]; ok && owner != r.ID {
			return fmt.Errorf("%w: code %q belongs to id %d, seed wants id %d", ErrSeedConflict, r.Code, owner, r.ID)
		}
	}
	return nil
}
