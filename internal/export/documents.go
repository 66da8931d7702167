// Package export copies the migrated firma schema into a document store.
//
// Departments and salary grades become flat documents. Every employee
// becomes one document with children, bonuses and machines embedded and the
// insurer code joined back in from krankenversicherung.
package export

import (
	"time"

	"github.com/fhwedel/firma/internal/firma"
)

// Collection names written by Export.
const (
	CollectionDepartments = "abteilungen"
	CollectionSalaries    = "gehalt"
	CollectionPersonnel   = "personal"
)

// uniqueIndexes maps each collection to the field that identifies a document.
var uniqueIndexes = []struct {
	collection string
	field      string
}{
	{CollectionPersonnel, "pnr"},
	{CollectionDepartments, "abt_nr"},
	{CollectionSalaries, "geh_stufe"},
}

// DepartmentDoc is one document of abteilungen.
type DepartmentDoc struct {
	AbtNr string `bson:"abt_nr" json:"abt_nr"`
	Name  string `bson:"name" json:"name"`
}

// SalaryDoc is one document of gehalt.
type SalaryDoc struct {
	GehStufe string `bson:"geh_stufe" json:"geh_stufe"`
	Betrag   int64  `bson:"betrag" json:"betrag"`
}

// ChildDoc is embedded in PersonDoc.Kinder.
type ChildDoc struct {
	Name    string `bson:"k_name" json:"k_name"`
	Vorname string `bson:"k_vorname" json:"k_vorname"`
	Geb     *int64 `bson:"k_geb" json:"k_geb"`
}

// MachineDoc is embedded in PersonDoc.Maschinen.
type MachineDoc struct {
	Mnr        int64      `bson:"mnr" json:"mnr"`
	Name       string     `bson:"name" json:"name"`
	AnschDatum *time.Time `bson:"ansch_datum" json:"ansch_datum"`
	Neuwert    *int64     `bson:"neuwert" json:"neuwert"`
	Zeitwert   *int64     `bson:"zeitwert" json:"zeitwert"`
}

// PersonDoc is one document of personal. Krankenkasse is empty and KKID nil
// for employees without a resolved insurer.
type PersonDoc struct {
	Pnr          int64        `bson:"pnr" json:"pnr"`
	Name         string       `bson:"name" json:"name"`
	Vorname      string       `bson:"vorname" json:"vorname"`
	GehStufe     string       `bson:"geh_stufe" json:"geh_stufe"`
	AbtNr        string       `bson:"abt_nr" json:"abt_nr"`
	Krankenkasse string       `bson:"krankenkasse" json:"krankenkasse"`
	KKID         *int64       `bson:"kkid" json:"kkid"`
	Kinder       []ChildDoc   `bson:"kinder" json:"kinder"`
	Praemien     []int64      `bson:"praemien" json:"praemien"`
	Maschinen    []MachineDoc `bson:"maschinen" json:"maschinen"`
}

func newPersonDoc(r firma.PersonnelRecord) PersonDoc {
	return PersonDoc{
		Pnr:          r.Pnr,
		Name:         r.Name,
		Vorname:      r.Vorname,
		GehStufe:     r.GehStufe,
		AbtNr:        r.AbtNr,
		Krankenkasse: r.Krankenkasse,
		KKID:         r.KKID,
		Kinder:       []ChildDoc{},
		Praemien:     []int64{},
		Maschinen:    []MachineDoc{},
	}
}
