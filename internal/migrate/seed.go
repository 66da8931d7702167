package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ReferenceRow is one canonical reference entity: a stable id, a short code
// from the same alphabet as the legacy column, and a descriptive name.
type ReferenceRow struct {
	ID   int64  `yaml:"id" toml:"id" json:"id"`
	Code string `yaml:"code" toml:"code" json:"code"`
	Name string `yaml:"name" toml:"name" json:"name"`
}

// SeedSet is an immutable, validated list of reference rows.
type SeedSet struct {
	rows []ReferenceRow
}

// NewSeedSet validates rows and returns them as a SeedSet. Codes and names are
// trimmed; ids and normalized codes must be unique.
func NewSeedSet(rows []ReferenceRow) (SeedSet, error) {
	if len(rows) == 0 {
		return SeedSet{}, fmt.Errorf("%w: no reference rows", ErrInvalidSeed)
	}
	seenIDs := make(map[int64]bool, len(rows))
	seenCodes := make(map[string]int64, len(rows))
	out := make([]ReferenceRow, 0, len(rows))
	for _, r := range rows {
		r.Code = strings.TrimSpace(r.Code)
		r.Name = strings.TrimSpace(r.Name)
		if r.ID <= 0 {
			return SeedSet{}, fmt.Errorf("%w: id %d must be positive", ErrInvalidSeed, r.ID)
		}
		if r.Code == "" {
			return SeedSet{}, fmt.Errorf("%w: id %d has an empty code", ErrInvalidSeed, r.ID)
		}
		if r.Name == "" {
			return SeedSet{}, fmt.Errorf("%w: id %d has an empty name", ErrInvalidSeed, r.ID)
		}
		if seenIDs[r.ID] {
			return SeedSet{}, fmt.Errorf("%w: duplicate id %d", ErrInvalidSeed, r.ID)
		}
		code := normalizeCode(r.Code)
		if other, ok := seenCodes[code]; ok {
			return SeedSet{}, fmt.Errorf("%w: code %q used by ids %d and %d", ErrInvalidSeed, r.Code, other, r.ID)
		}
		seenIDs[r.ID] = true
		seenCodes[code] = r.ID
		out = append(out, r)
	}
	return SeedSet{rows: out}, nil
}

// MustSeedSet is NewSeedSet for static fixtures; it panics on invalid input.
func MustSeedSet(rows ...ReferenceRow) SeedSet {
	s, err := NewSeedSet(rows)
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultSeedSet is the hand-maintained insurer list of the firma database.
func DefaultSeedSet() SeedSet {
	return MustSeedSet(
		ReferenceRow{ID: 1, Code: "aok", Name: "Allgemeine Ortskrankenkasse"},
		ReferenceRow{ID: 2, Code: "bak", Name: "Betriebskrankenkasse B. Braun Aesculap"},
		ReferenceRow{ID: 3, Code: "bek", Name: "Barmer Ersatzkasse"},
		ReferenceRow{ID: 4, Code: "dak", Name: "Deutsche Angestelltenkrankenkasse"},
		ReferenceRow{ID: 5, Code: "tkk", Name: "Techniker Krankenkasse"},
		ReferenceRow{ID: 6, Code: "kkh", Name: "Kaufmännische Krankenkasse"},
	)
}

// Rows returns a copy of the seed rows in declaration order.
func (s SeedSet) Rows() []ReferenceRow {
	return append([]ReferenceRow(nil), s.rows...)
}

// Len returns the number of rows.
func (s SeedSet) Len() int { return len(s.rows) }

// CheckWidths verifies that codes and names fit the plan's column widths.
func (s SeedSet) CheckWidths(codeWidth, nameWidth int) error {
	for _, r := range s.rows {
		if utf8.RuneCountInString(r.Code) > codeWidth {
			return fmt.Errorf("%w: code %q is longer than %d characters", ErrInvalidSeed, r.Code, codeWidth)
		}
		if utf8.RuneCountInString(r.Name) > nameWidth {
			return fmt.Errorf("%w: name of id %d is longer than %d characters", ErrInvalidSeed, r.ID, nameWidth)
		}
	}
	return nil
}

type seedFile struct {
	References []ReferenceRow `yaml:"references" toml:"references"`
}

// LoadSeedFile reads a seed set from a YAML (.yaml/.yml) or TOML (.toml) file:
//
//	references:
//	  - {id: 1, code: aok, name: Allgemeine Ortskrankenkasse}
func LoadSeedFile(path string) (SeedSet, error) {
	// #nosec G304 -- path comes from the operator's --seed-file flag
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedSet{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f seedFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return SeedSet{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return SeedSet{}, fmt.Errorf("failed to parse seed file %s: %w", path, err)
		}
	default:
		return SeedSet{}, fmt.Errorf("unsupported seed file extension %q (want .yaml, .yml or .toml)", filepath.Ext(path))
	}
	return NewSeedSet(f.References)
}

// normalizeCode is the comparison form of a code: trimmed and lower-cased.
func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
