package firma

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ErrInvalidPersonal is returned when a personnel record violates a column width.
var ErrInvalidPersonal = errors.New("invalid personnel record")

// Personal is one row of the personal table. Empty optional fields are
// stored as NULL.
type Personal struct {
	Pnr          int64  `json:"pnr"`
	Name         string `json:"name"`
	Vorname      string `json:"vorname,omitempty"`
	GehStufe     string `json:"geh_stufe,omitempty"`
	AbtNr        string `json:"abt_nr,omitempty"`
	Krankenkasse string `json:"krankenkasse,omitempty"` // insurer code, e.g. "tkk"
}

// column widths of the personal table
var personalWidths = []struct {
	field    string
	width    int
	required bool
	get      func(p *Personal) string
}{
	{"name", 20, true, func(p *Personal) string { return p.Name }},
	{"vorname", 20, false, func(p *Personal) string { return p.Vorname }},
	{"geh_stufe", 4, false, func(p *Personal) string { return p.GehStufe }},
	{"abt_nr", 3, false, func(p *Personal) string { return p.AbtNr }},
	{"krankenkasse", 3, false, func(p *Personal) string { return p.Krankenkasse }},
}

// Validate checks the record against the column widths of personal.
func (p *Personal) Validate() error {
	if p.Pnr <= 0 {
		return fmt.Errorf("%w: pnr must be positive, got %d", ErrInvalidPersonal, p.Pnr)
	}
	for _, w := range personalWidths {
		v := w.get(p)
		if w.required && strings.TrimSpace(v) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidPersonal, w.field)
		}
		if n := utf8.RuneCountInString(v); n > w.width {
			return fmt.Errorf("%w: %s is %d characters, at most %d allowed", ErrInvalidPersonal, w.field, n, w.width)
		}
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// AddPersonal inserts p, or updates the row with the same pnr. On a migrated
// schema the insurer code is resolved to kkid; an unknown code stores NULL.
// Returns the driver's affected row count.
func (s *Store) AddPersonal(ctx context.Context, p Personal) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}
	layout, err := s.Layout(ctx)
	if err != nil {
		return 0, err
	}

	cols := []string{"pnr", "name", "vorname", "geh_stufe", "abt_nr"}
	args := []any{p.Pnr, p.Name, nullable(p.Vorname), nullable(p.GehStufe), nullable(p.AbtNr)}

	switch layout {
	case LayoutLegacy:
		cols = append(cols, s.plan.LegacyColumn)
		args = append(args, nullable(p.Krankenkasse))
	case LayoutMigrated:
		kkid, err := s.ResolveInsurer(ctx, p.Krankenkasse)
		if err != nil {
			return 0, err
		}
		if p.Krankenkasse != "" && !kkid.Valid {
			s.logger.Warn("unknown insurer code, storing NULL",
				zap.Int64("pnr", p.Pnr), zap.String("code", p.Krankenkasse))
		}
		cols = append(cols, s.plan.ForeignKeyColumn)
		args = append(args, kkid)
	}

	d := s.db.Dialect()
	stmt := d.Upsert(s.table(s.plan.EntityTable), s.plan.EntityKey, cols, cols[1:])
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert personal %d: %w", p.Pnr, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	s.logger.Debug("personal upserted", zap.Int64("pnr", p.Pnr), zap.Stringer("layout", layout))
	return n, nil
}

// ResolveInsurer maps an insurer code to its kkid using the same trimmed,
// case-folded comparison as the migration. An empty or unknown code yields
// an invalid NullInt64.
func (s *Store) ResolveInsurer(ctx context.Context, code string) (sql.NullInt64, error) {
	var kkid sql.NullInt64
	if strings.TrimSpace(code) == "" {
		return kkid, nil
	}
	p := s.plan
	d := s.db.Dialect()
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE LOWER(TRIM(%s)) = LOWER(TRIM(%s))",
		d.Quote(p.ReferenceKey), s.table(p.ReferenceTable), d.Quote(p.ReferenceCode), s.ph(1)), code).Scan(&kkid)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.NullInt64{}, nil
	}
	if err != nil {
		return kkid, fmt.Errorf("failed to resolve insurer %q: %w", code, err)
	}
	return kkid, nil
}

// DeletePersonalByName deletes every row whose name equals name exactly.
func (s *Store) DeletePersonalByName(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM "+s.table("personal")+" WHERE name = "+s.ph(1), name)
	if err != nil {
		return 0, fmt.Errorf("failed to delete personal %q: %w", name, err)
	}
	return res.RowsAffected()
}

// RaiseSalary raises every salary of grade gehStufe by percent, rounded to
// whole units. Negative percentages lower salaries.
func (s *Store) RaiseSalary(ctx context.Context, percent int, gehStufe string) (int64, error) {
	if percent <= -100 {
		return 0, fmt.Errorf("percent must be greater than -100, got %d", percent)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table("gehalt")+" SET betrag = ROUND(betrag * (1 + "+s.ph(1)+" / 100.0), 0) WHERE geh_stufe = "+s.ph(2),
		percent, gehStufe)
	if err != nil {
		return 0, fmt.Errorf("failed to raise salary %s: %w", gehStufe, err)
	}
	return res.RowsAffected()
}

// Employee is a row of EmployeesInDepartment.
type Employee struct {
	Pnr     int64  `json:"pnr"`
	Name    string `json:"name"`
	Vorname string `json:"vorname,omitempty"`
}

func (e Employee) String() string {
	return fmt.Sprintf("%d - %s, %s", e.Pnr, e.Name, e.Vorname)
}

// EmployeesInDepartment lists the staff of the department named dept,
// comparing the trimmed department name. An unknown department yields an
// empty list.
func (s *Store) EmployeesInDepartment(ctx context.Context, dept string) ([]Employee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.pnr, p.name, p.vorname
		FROM `+s.table("personal")+` p
		JOIN `+s.table("abteilung")+` a ON a.abt_nr = p.abt_nr
		WHERE TRIM(a.name) = `+s.ph(1)+`
		ORDER BY p.pnr`, strings.TrimSpace(dept))
	if err != nil {
		return nil, fmt.Errorf("failed to query department %q: %w", dept, err)
	}
	defer rows.Close()

	out := []Employee{}
	for rows.Next() {
		var e Employee
		var vorname sql.NullString
		if err := rows.Scan(&e.Pnr, &e.Name, &vorname); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		e.Name = strings.TrimSpace(e.Name)
		e.Vorname = strings.TrimSpace(vorname.String)
		out = append(out, e)
	}
	return out, rows.Err()
}
