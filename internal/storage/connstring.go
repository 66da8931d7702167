package storage

import (
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const redacted = "xxxxx"

// RedactDSN masks the password in a MySQL or PostgreSQL connection string so
// it can be logged. Strings that parse as neither are returned fully masked.
func RedactDSN(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return ""
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return redacted
		}
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
		return u.String()
	}

	// libpq keyword/value form: host=db user=firma password=secret
	if strings.Contains(dsn, "=") && !strings.Contains(dsn, "@") {
		fields := strings.Fields(dsn)
		for i, f := range fields {
			if strings.HasPrefix(strings.ToLower(f), "password=") {
				fields[i] = "password=" + redacted
			}
		}
		return strings.Join(fields, " ")
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return redacted
	}
	if cfg.Passwd != "" {
		cfg.Passwd = redacted
	}
	return cfg.FormatDSN()
}
