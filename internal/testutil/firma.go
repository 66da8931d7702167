package testutil

import (
	"context"
	"testing"

	"github.com/fhwedel/firma/internal/storage"
)

// Legacy personnel rows loaded by LoadFirma, keyed by pnr. The codes cover
// an exact match, a case-folded match, an unknown code and a NULL code.
const (
	PnrSchmidt = 67  // krankenkasse "tkk"
	PnrKrause  = 88  // krankenkasse "zzz", no such insurer
	PnrTietze  = 89  // krankenkasse "AOK"
	PnrMeyer   = 112 // krankenkasse NULL
)

// LoadFirma creates the pre-migration firma schema in schema and fills it
// with a small data set. The statements are portable between MySQL and
// PostgreSQL.
func LoadFirma(t *testing.T, db *storage.DB, schema string) {
	t.Helper()
	d := db.Dialect()
	q := func(table string) string { return storage.Qualify(d, schema, table) }

	stmts := []string{
		`CREATE TABLE ` + q("abteilung") + ` (
			abt_nr CHAR(3) NOT NULL PRIMARY KEY,
			name CHAR(20) NOT NULL
		)`,
		`CREATE TABLE ` + q("gehalt") + ` (
			geh_stufe VARCHAR(4) NOT NULL PRIMARY KEY,
			betrag INT NOT NULL
		)`,
		`CREATE TABLE ` + q("personal") + ` (
			pnr INT NOT NULL PRIMARY KEY,
			name CHAR(20) NOT NULL,
			vorname CHAR(20),
			geh_stufe VARCHAR(4),
			abt_nr CHAR(3),
			krankenkasse CHAR(3),
			CONSTRAINT fk_geh FOREIGN KEY (geh_stufe) REFERENCES ` + q("gehalt") + ` (geh_stufe),
			CONSTRAINT fk_abt FOREIGN KEY (abt_nr) REFERENCES ` + q("abteilung") + ` (abt_nr)
		)`,
		`CREATE TABLE ` + q("kind") + ` (
			pnr INT NOT NULL,
			k_name CHAR(20) NOT NULL,
			k_vorname CHAR(20) NOT NULL,
			k_geb INT
		)`,
		`CREATE TABLE ` + q("praemie") + ` (
			pnr INT NOT NULL,
			p_betrag INT NOT NULL
		)`,
		`CREATE TABLE ` + q("maschine") + ` (
			mnr INT NOT NULL PRIMARY KEY,
			name CHAR(20) NOT NULL,
			pnr INT,
			ansch_datum DATE,
			neuwert INT,
			zeitwert INT
		)`,

		`INSERT INTO ` + q("abteilung") + ` (abt_nr, name) VALUES
			('d11', 'Verwaltung'), ('d13', 'Einkauf'), ('d14', 'Verkauf'), ('d15', 'Entwicklung')`,
		`INSERT INTO ` + q("gehalt") + ` (geh_stufe, betrag) VALUES
			('it1', 2400), ('it2', 2850), ('it3', 3300)`,
		`INSERT INTO ` + q("personal") + ` (pnr, name, vorname, geh_stufe, abt_nr, krankenkasse) VALUES
			(67, 'Schmidt', 'Udo', 'it2', 'd14', 'tkk'),
			(88, 'Krause', 'Henrik', 'it1', 'd15', 'zzz'),
			(89, 'Tietze', 'Lutz', 'it3', 'd13', 'AOK'),
			(112, 'Meyer', 'Uta', 'it1', 'd14', NULL)`,
		`INSERT INTO ` + q("kind") + ` (pnr, k_name, k_vorname, k_geb) VALUES
			(67, 'Schmidt', 'Lena', 2012), (67, 'Schmidt', 'Tom', 2015)`,
		`INSERT INTO ` + q("praemie") + ` (pnr, p_betrag) VALUES
			(67, 500), (89, 250)`,
		`INSERT INTO ` + q("maschine") + ` (mnr, name, pnr, ansch_datum, neuwert, zeitwert) VALUES
			(1, 'Bohrmaschine', 88, '2019-03-01', 1200, 800)`,
	}

	ctx := context.Background()
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("Failed to load firma fixture: %v\n%s", err, stmt)
		}
	}
}
