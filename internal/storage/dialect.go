package storage

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect names accepted by ParseDialect and the db.dialect config key.
const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// Dialect captures the SQL differences between the supported servers.
// Everything else the tool issues is portable information_schema / ANSI SQL.
type Dialect interface {
	// Name returns the config name of the dialect ("mysql", "postgres").
	Name() string
	// DriverName returns the database/sql driver name to open connections with.
	DriverName() string
	// Placeholder returns the bind placeholder for the n-th (1-based) argument.
	Placeholder(n int) string
	// Quote quotes a single identifier.
	Quote(ident string) string
	// TransactionalDDL reports whether ALTER/CREATE/DROP participate in the
	// surrounding transaction. MySQL and MariaDB commit DDL implicitly.
	TransactionalDDL() bool
	// Upsert builds an insert that updates updateCols when a row with the
	// same key already exists.
	Upsert(table, key string, cols, updateCols []string) string
	// SetNotNull builds the statement that tightens column to NOT NULL.
	SetNotNull(table, column, columnType string) string
	// DefaultSchema is the schema used when none is configured.
	DefaultSchema(database string) string
}

// ParseDialect maps a config value to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DialectMySQL, "mariadb", "":
		return MySQL{}, nil
	case DialectPostgres, "postgresql", "pgx":
		return Postgres{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect %q (want %s or %s)", name, DialectMySQL, DialectPostgres)
	}
}

// Qualify returns schema.table quoted for d. An empty schema yields just the table.
func Qualify(d Dialect, schema, table string) string {
	if schema == "" {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

// identRe restricts identifiers to what the tool ever needs. Identifiers are
// interpolated into DDL, so anything else is rejected up front.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidateIdentifier rejects names that are not plain SQL identifiers.
func ValidateIdentifier(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// MySQL is the MySQL/MariaDB dialect (go-sql-driver/mysql).
type MySQL struct{}

func (MySQL) Name() string       { return DialectMySQL }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) Placeholder(int) string { return "?" }

func (MySQL) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (MySQL) TransactionalDDL() bool { return false }

func (d MySQL) Upsert(table, key string, cols, updateCols []string) string {
	var b strings.Builder
	b.WriteString(insertPrefix(d, table, cols))
	b.WriteString(" ON DUPLICATE KEY UPDATE ")
	for i, c := range updateCols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = VALUES(%s)", d.Quote(c), d.Quote(c))
	}
	return b.String()
}

func (d MySQL) SetNotNull(table, column, columnType string) string {
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s %s NOT NULL", table, d.Quote(column), columnType)
}

func (MySQL) DefaultSchema(database string) string { return database }

// Postgres is the PostgreSQL dialect (jackc/pgx stdlib driver).
type Postgres struct{}

func (Postgres) Name() string       { return DialectPostgres }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (Postgres) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (Postgres) TransactionalDDL() bool { return true }

func (d Postgres) Upsert(table, key string, cols, updateCols []string) string {
	var b strings.Builder
	b.WriteString(insertPrefix(d, table, cols))
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO UPDATE SET ", d.Quote(key))
	for i, c := range updateCols {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s = EXCLUDED.%s", d.Quote(c), d.Quote(c))
	}
	return b.String()
}

func (d Postgres) SetNotNull(table, column, _ string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, d.Quote(column))
}

func (Postgres) DefaultSchema(string) string { return "public" }

// insertPrefix renders "INSERT INTO table (cols) VALUES (placeholders)".
// table is expected to be quoted/qualified already.
func insertPrefix(d Dialect, table string, cols []string) string {
	quoted := make([]string, len(cols))
	binds := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = d.Quote(c)
		binds[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(binds, ", "))
}
