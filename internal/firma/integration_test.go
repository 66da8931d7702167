package firma_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fhwedel/firma/internal/firma"
	"github.com/fhwedel/firma/internal/migrate"
	"github.com/fhwedel/firma/internal/storage"
	"github.com/fhwedel/firma/internal/testutil"
)

func forEachServer(t *testing.T, fn func(t *testing.T, db *storage.DB, s *firma.Store)) {
	for _, srv := range []struct {
		name  string
		start func(t *testing.T) *testutil.Server
	}{
		{"mariadb", testutil.MariaDB},
		{"postgres", testutil.Postgres},
	} {
		t.Run(srv.name, func(t *testing.T) {
			db, schema := srv.start(t).Fresh(t)
			testutil.LoadFirma(t, db, schema)
			fn(t, db, firma.NewStore(db, schema, nil))
		})
	}
}

func migrateSchema(t *testing.T, db *storage.DB, schema string) {
	t.Helper()
	e, err := migrate.NewEngine(db, migrate.DefaultPlan().WithSchema(schema))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestEmployeesInDepartmentOnServer(t *testing.T) {
	forEachServer(t, func(t *testing.T, _ *storage.DB, s *firma.Store) {
		got, err := s.EmployeesInDepartment(context.Background(), "Verkauf")
		if err != nil {
			t.Fatalf("EmployeesInDepartment: %v", err)
		}
		if len(got) != 2 || got[0].Pnr != testutil.PnrSchmidt || got[1].Pnr != testutil.PnrMeyer {
			t.Fatalf("got %v, want Schmidt and Meyer", got)
		}
		if got[0].String() != "67 - Schmidt, Udo" {
			t.Errorf("String() = %q", got[0].String())
		}
	})
}

func TestRaiseSalaryRounds(t *testing.T) {
	forEachServer(t, func(t *testing.T, _ *storage.DB, s *firma.Store) {
		ctx := context.Background()
		n, err := s.RaiseSalary(ctx, 10, "it2")
		if err != nil {
			t.Fatalf("RaiseSalary: %v", err)
		}
		if n != 1 {
			t.Errorf("affected = %d, want 1", n)
		}
		salaries, err := s.Salaries(ctx)
		if err != nil {
			t.Fatalf("Salaries: %v", err)
		}
		for _, sal := range salaries {
			if sal.GehStufe == "it2" && sal.Betrag != 3135 {
				t.Errorf("it2 = %d, want 3135", sal.Betrag)
			}
			if sal.GehStufe == "it1" && sal.Betrag != 2400 {
				t.Errorf("it1 changed to %d", sal.Betrag)
			}
		}
	})
}

func TestAddAndDeletePersonalAcrossMigration(t *testing.T) {
	forEachServer(t, func(t *testing.T, db *storage.DB, s *firma.Store) {
		ctx := context.Background()
		if _, err := s.AddPersonal(ctx, firma.Personal{Pnr: 130, Name: "Lehmann", Krankenkasse: "dak"}); err != nil {
			t.Fatalf("AddPersonal legacy: %v", err)
		}

		migrateSchema(t, db, s.Schema())

		if _, err := s.AddPersonal(ctx, firma.Personal{Pnr: 131, Name: "Berger", Krankenkasse: "bek"}); err != nil {
			t.Fatalf("AddPersonal migrated: %v", err)
		}
		records, err := s.Personnel(ctx)
		if err != nil {
			t.Fatalf("Personnel: %v", err)
		}
		codes := map[int64]string{}
		for _, r := range records {
			codes[r.Pnr] = r.Krankenkasse
		}
		if codes[130] != "dak" || codes[131] != "bek" {
			t.Errorf("codes = %v, want 130=dak 131=bek", codes)
		}

		n, err := s.DeletePersonalByName(ctx, "Berger")
		if err != nil || n != 1 {
			t.Fatalf("DeletePersonalByName = %d, %v", n, err)
		}
	})
}

func TestPersonnelBeforeMigration(t *testing.T) {
	forEachServer(t, func(t *testing.T, _ *storage.DB, s *firma.Store) {
		if _, err := s.Personnel(context.Background()); !errors.Is(err, firma.ErrNotMigrated) {
			t.Fatalf("err = %v, want ErrNotMigrated", err)
		}
	})
}

func TestDumpTableOnServer(t *testing.T) {
	forEachServer(t, func(t *testing.T, _ *storage.DB, s *firma.Store) {
		dump, err := s.DumpTable(context.Background(), "maschine")
		if err != nil {
			t.Fatalf("DumpTable: %v", err)
		}
		if len(dump.Columns) != 6 || len(dump.Rows) != 1 {
			t.Fatalf("dump = %d columns, %d rows", len(dump.Columns), len(dump.Rows))
		}
		if _, err := s.DumpTable(context.Background(), "krankenversicherung"); !errors.Is(err, firma.ErrNoSuchTable) {
			t.Errorf("err = %v, want ErrNoSuchTable", err)
		}
	})
}
