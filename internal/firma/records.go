package firma

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Department is a row of abteilung.
type Department struct {
	AbtNr string
	Name  string
}

// Salary is a row of gehalt.
type Salary struct {
	GehStufe string
	Betrag   int64
}

// PersonnelRecord is a personal row with its insurer denormalized back from
// krankenversicherung. Krankenkasse is empty and KKID nil for rows without
// a reference.
type PersonnelRecord struct {
	Pnr          int64
	Name         string
	Vorname      string
	GehStufe     string
	AbtNr        string
	Krankenkasse string
	KKID         *int64
}

// Child is a row of kind.
type Child struct {
	Name    string
	Vorname string
	Geb     *int64
}

// Machine is a row of maschine.
type Machine struct {
	Mnr        int64
	Name       string
	AnschDatum *time.Time
	Neuwert    *int64
	Zeitwert   *int64
}

func trimNull(s sql.NullString) string {
	return strings.TrimSpace(s.String)
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// Departments returns every department ordered by abt_nr.
func (s *Store) Departments(ctx context.Context) ([]Department, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT abt_nr, name FROM "+s.table("abteilung")+" ORDER BY abt_nr")
	if err != nil {
		return nil, fmt.Errorf("failed to read abteilung: %w", err)
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var abtNr, name sql.NullString
		if err := rows.Scan(&abtNr, &name); err != nil {
			return nil, fmt.Errorf("failed to scan abteilung: %w", err)
		}
		out = append(out, Department{AbtNr: trimNull(abtNr), Name: trimNull(name)})
	}
	return out, rows.Err()
}

// Salaries returns every salary grade ordered by geh_stufe.
func (s *Store) Salaries(ctx context.Context) ([]Salary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT geh_stufe, betrag FROM "+s.table("gehalt")+" ORDER BY geh_stufe")
	if err != nil {
		return nil, fmt.Errorf("failed to read gehalt: %w", err)
	}
	defer rows.Close()

	var out []Salary
	for rows.Next() {
		var stufe sql.NullString
		var betrag sql.NullInt64
		if err := rows.Scan(&stufe, &betrag); err != nil {
			return nil, fmt.Errorf("failed to scan gehalt: %w", err)
		}
		out = append(out, Salary{GehStufe: trimNull(stufe), Betrag: betrag.Int64})
	}
	return out, rows.Err()
}

// Personnel returns every personal row joined with its insurer. It needs
// the migrated layout and returns ErrNotMigrated otherwise.
func (s *Store) Personnel(ctx context.Context) ([]PersonnelRecord, error) {
	layout, err := s.Layout(ctx)
	if err != nil {
		return nil, err
	}
	if layout != LayoutMigrated {
		return nil, ErrNotMigrated
	}

	p := s.plan
	d := s.db.Dialect()
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT p.pnr, p.name, p.vorname, p.geh_stufe, p.abt_nr, p.%[1]s, kv.%[2]s
		FROM %[3]s p
		LEFT JOIN %[4]s kv ON kv.%[5]s = p.%[1]s
		ORDER BY p.pnr`,
		d.Quote(p.ForeignKeyColumn), d.Quote(p.ReferenceCode),
		s.table(p.EntityTable), s.table(p.ReferenceTable), d.Quote(p.ReferenceKey)))
	if err != nil {
		return nil, fmt.Errorf("failed to read personal: %w", err)
	}
	defer rows.Close()

	var out []PersonnelRecord
	for rows.Next() {
		var r PersonnelRecord
		var name, vorname, stufe, abt, code sql.NullString
		var kkid sql.NullInt64
		if err := rows.Scan(&r.Pnr, &name, &vorname, &stufe, &abt, &kkid, &code); err != nil {
			return nil, fmt.Errorf("failed to scan personal: %w", err)
		}
		r.Name = trimNull(name)
		r.Vorname = trimNull(vorname)
		r.GehStufe = trimNull(stufe)
		r.AbtNr = trimNull(abt)
		r.Krankenkasse = trimNull(code)
		r.KKID = int64Ptr(kkid)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Children returns the children of pnr.
func (s *Store) Children(ctx context.Context, pnr int64) ([]Child, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT k_name, k_vorname, k_geb FROM "+s.table("kind")+" WHERE pnr = "+s.ph(1)+" ORDER BY k_geb, k_vorname", pnr)
	if err != nil {
		return nil, fmt.Errorf("failed to read kind of %d: %w", pnr, err)
	}
	defer rows.Close()

	var out []Child
	for rows.Next() {
		var name, vorname sql.NullString
		var geb sql.NullInt64
		if err := rows.Scan(&name, &vorname, &geb); err != nil {
			return nil, fmt.Errorf("failed to scan kind: %w", err)
		}
		out = append(out, Child{Name: trimNull(name), Vorname: trimNull(vorname), Geb: int64Ptr(geb)})
	}
	return out, rows.Err()
}

// Bonuses returns the bonus amounts of pnr.
func (s *Store) Bonuses(ctx context.Context, pnr int64) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT p_betrag FROM "+s.table("praemie")+" WHERE pnr = "+s.ph(1)+" ORDER BY p_betrag", pnr)
	if err != nil {
		return nil, fmt.Errorf("failed to read praemie of %d: %w", pnr, err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var b sql.NullInt64
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("failed to scan praemie: %w", err)
		}
		out = append(out, b.Int64)
	}
	return out, rows.Err()
}

// Machines returns the machines assigned to pnr.
func (s *Store) Machines(ctx context.Context, pnr int64) ([]Machine, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT mnr, name, ansch_datum, neuwert, zeitwert FROM "+s.table("maschine")+" WHERE pnr = "+s.ph(1)+" ORDER BY mnr", pnr)
	if err != nil {
		return nil, fmt.Errorf("failed to read maschine of %d: %w", pnr, err)
	}
	defer rows.Close()

	var out []Machine
	for rows.Next() {
		var m Machine
		var name sql.NullString
		var datum sql.NullTime
		var neu, zeit sql.NullInt64
		if err := rows.Scan(&m.Mnr, &name, &datum, &neu, &zeit); err != nil {
			return nil, fmt.Errorf("failed to scan maschine: %w", err)
		}
		m.Name = trimNull(name)
		if datum.Valid {
			t := datum.Time
			m.AnschDatum = &t
		}
		m.Neuwert = int64Ptr(neu)
		m.Zeitwert = int64Ptr(zeit)
		out = append(out, m)
	}
	return out, rows.Err()
}
