package storage

import (
	"testing"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", DialectMySQL, false},
		{"mysql", DialectMySQL, false},
		{"MariaDB", DialectMySQL, false},
		{"postgres", DialectPostgres, false},
		{" postgresql ", DialectPostgres, false},
		{"pgx", DialectPostgres, false},
		{"sqlite", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := ParseDialect(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDialect(%q) = %v, want error", tt.in, d.Name())
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDialect(%q) error = %v", tt.in, err)
			}
			if d.Name() != tt.want {
				t.Fatalf("ParseDialect(%q) = %s, want %s", tt.in, d.Name(), tt.want)
			}
		})
	}
}

func TestQuoteAndQualify(t *testing.T) {
	if got := (MySQL{}).Quote("a`b"); got != "`a``b`" {
		t.Errorf("MySQL quote = %s", got)
	}
	if got := (Postgres{}).Quote(`a"b`); got != `"a""b"` {
		t.Errorf("Postgres quote = %s", got)
	}
	if got := Qualify(MySQL{}, "firma", "personal"); got != "`firma`.`personal`" {
		t.Errorf("Qualify = %s", got)
	}
	if got := Qualify(Postgres{}, "", "personal"); got != `"personal"` {
		t.Errorf("Qualify without schema = %s", got)
	}
}

func TestUpsert(t *testing.T) {
	cols := []string{"kkid", "kuerzel", "name"}
	tests := []struct {
		d    Dialect
		want string
	}{
		{
			MySQL{},
			"INSERT INTO t (`kkid`, `kuerzel`, `name`) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE `name` = VALUES(`name`)",
		},
		{
			Postgres{},
			`INSERT INTO t ("kkid", "kuerzel", "name") VALUES ($1, $2, $3) ON CONFLICT ("kkid") DO UPDATE SET "name" = EXCLUDED."name"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.d.Name(), func(t *testing.T) {
			if got := tt.d.Upsert("t", "kkid", cols, []string{"name"}); got != tt.want {
				t.Fatalf("Upsert:\n got %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestSetNotNull(t *testing.T) {
	if got := (MySQL{}).SetNotNull("`p`", "kkid", "INT"); got != "ALTER TABLE `p` MODIFY COLUMN `kkid` INT NOT NULL" {
		t.Errorf("MySQL SetNotNull = %s", got)
	}
	if got := (Postgres{}).SetNotNull(`"p"`, "kkid", "INT"); got != `ALTER TABLE "p" ALTER COLUMN "kkid" SET NOT NULL` {
		t.Errorf("Postgres SetNotNull = %s", got)
	}
}

func TestDialectProperties(t *testing.T) {
	if (MySQL{}).TransactionalDDL() {
		t.Error("MySQL reports transactional DDL")
	}
	if !(Postgres{}).TransactionalDDL() {
		t.Error("Postgres reports non-transactional DDL")
	}
	if got := (MySQL{}).DefaultSchema("firma"); got != "firma" {
		t.Errorf("MySQL default schema = %s", got)
	}
	if got := (Postgres{}).DefaultSchema("firma"); got != "public" {
		t.Errorf("Postgres default schema = %s", got)
	}
	if (MySQL{}).Placeholder(3) != "?" || (Postgres{}).Placeholder(3) != "$3" {
		t.Error("unexpected placeholders")
	}
}

func TestValidateIdentifier(t *testing.T) {
	for _, ok := range []string{"personal", "_x", "fk_kk", "krankenversicherung2"} {
		if err := ValidateIdentifier(ok); err != nil {
			t.Errorf("ValidateIdentifier(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1abc", "a-b", "a b", "a;b", "`a`", "personal.kkid"} {
		if err := ValidateIdentifier(bad); err == nil {
			t.Errorf("ValidateIdentifier(%q) accepted", bad)
		}
	}
}
