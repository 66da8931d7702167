package export_test

import (
	"context"
	"testing"

	"github.com/fhwedel/firma/internal/export"
	"github.com/fhwedel/firma/internal/firma"
	"github.com/fhwedel/firma/internal/migrate"
	"github.com/fhwedel/firma/internal/testutil"
)

func TestExportToMongo(t *testing.T) {
	uri := testutil.Mongo(t)
	db, schema := testutil.MariaDB(t).Fresh(t)
	testutil.LoadFirma(t, db, schema)

	ctx := context.Background()
	engine, err := migrate.NewEngine(db, migrate.DefaultPlan().WithSchema(schema))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := engine.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	sink, err := export.ConnectMongo(ctx, uri, schema, nil)
	if err != nil {
		t.Fatalf("ConnectMongo: %v", err)
	}
	t.Cleanup(func() { _ = sink.Close(context.Background()) })

	exp := export.New(firma.NewStore(db, schema, nil), sink, export.Options{}, nil)
	for run := 1; run <= 2; run++ {
		manifest, err := exp.Export(ctx)
		if err != nil {
			t.Fatalf("Export run %d: %v", run, err)
		}
		want := map[string]int64{
			export.CollectionPersonnel:   4,
			export.CollectionDepartments: 4,
			export.CollectionSalaries:    3,
		}
		for coll, n := range want {
			if manifest.Counts[coll] != n {
				t.Errorf("run %d: %s has %d documents, want %d", run, coll, manifest.Counts[coll], n)
			}
		}
		if len(manifest.WithoutInsurer) != 2 {
			t.Errorf("run %d: without insurer = %v, want Krause and Meyer", run, manifest.WithoutInsurer)
		}
	}

	// The unique index rejects a second document for an existing pnr.
	err = sink.InsertMany(ctx, export.CollectionPersonnel, []any{export.PersonDoc{Pnr: testutil.PnrSchmidt, Name: "Doppelt"}})
	if err == nil {
		t.Error("duplicate pnr was accepted")
	}
}
