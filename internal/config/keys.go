package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Key describes a configuration key firma understands.
type Key struct {
	Key         string // Full key name (e.g., "db.host")
	Description string // Human-readable description
	EnvVar      string // Environment variable that overrides the key
	Secret      bool   // Value is masked when settings are printed
	Default     any    // Default value (nil = no default)
	Validate    func(string) error
}

// Keys defines every configuration key. Initialize registers the defaults
// and environment bindings from this table.
var Keys = []Key{
	{
		Key:         "db.dialect",
		Description: "SQL server dialect (mysql, postgres)",
		EnvVar:      "FIRMA_DB_DIALECT",
		Default:     "mysql",
		Validate:    validateDialect,
	},
	{
		Key:         "db.dsn",
		Description: "Driver connection string; overrides host, port, user, password and name",
		EnvVar:      "FIRMA_DB_DSN",
		Secret:      true,
		Default:     "",
	},
	{
		Key:         "db.host",
		Description: "Database server hostname",
		EnvVar:      "FIRMA_DB_HOST",
		Default:     "127.0.0.1",
	},
	{
		Key:         "db.port",
		Description: "Database server port",
		EnvVar:      "FIRMA_DB_PORT",
		Default:     3306,
		Validate:    validatePort,
	},
	{
		Key:         "db.user",
		Description: "Database user",
		EnvVar:      "FIRMA_DB_USER",
		Default:     "root",
	},
	{
		Key:         "db.password",
		Description: "Database password",
		EnvVar:      "FIRMA_DB_PASSWORD",
		Secret:      true,
		Default:     "",
	},
	{
		Key:         "db.name",
		Description: "Database name",
		EnvVar:      "FIRMA_DB_NAME",
		Default:     "firma",
	},
	{
		Key:         "db.connect-timeout",
		Description: "How long to retry the initial connection (e.g., 30s; 0 = single attempt)",
		EnvVar:      "FIRMA_DB_CONNECT_TIMEOUT",
		Default:     30 * time.Second,
		Validate:    validateDuration,
	},
	{
		Key:         "migrate.schema",
		Description: "Schema holding the tables to migrate (default: db.name, or public on PostgreSQL)",
		EnvVar:      "FIRMA_MIGRATE_SCHEMA",
		Default:     "",
	},
	{
		Key:         "migrate.seed-file",
		Description: "YAML or TOML file replacing the built-in insurer list",
		EnvVar:      "FIRMA_MIGRATE_SEED_FILE",
		Default:     "",
	},
	{
		Key:         "mongo.uri",
		Description: "MongoDB connection URI for export",
		EnvVar:      "FIRMA_MONGO_URI",
		Secret:      true,
		Default:     "mongodb://localhost:27017",
	},
	{
		Key:         "mongo.database",
		Description: "MongoDB database for export",
		EnvVar:      "FIRMA_MONGO_DATABASE",
		Default:     "firma",
	},
	{
		Key:         "export.error-policy",
		Description: "What export does when one person's records fail to load (strict, best-effort)",
		EnvVar:      "FIRMA_EXPORT_ERROR_POLICY",
		Default:     "strict",
		Validate:    validateErrorPolicy,
	},
	{
		Key:         "export.workers",
		Description: "Concurrent per-person loads during export",
		EnvVar:      "FIRMA_EXPORT_WORKERS",
		Default:     4,
		Validate:    validatePositiveInt,
	},
	{
		Key:         "log.level",
		Description: "Log level (debug, info, warn, error)",
		EnvVar:      "FIRMA_LOG_LEVEL",
		Default:     "info",
		Validate:    validateLogLevel,
	},
	{
		Key:         "log.file",
		Description: "Write JSON logs to this file instead of stderr",
		EnvVar:      "FIRMA_LOG_FILE",
		Default:     "",
	},
	{
		Key:         "log.max-size-mb",
		Description: "Rotate the log file after this many megabytes",
		EnvVar:      "FIRMA_LOG_MAX_SIZE_MB",
		Default:     10,
		Validate:    validatePositiveInt,
	},
	{
		Key:         "json",
		Description: "Print machine-readable JSON",
		EnvVar:      "FIRMA_JSON",
		Default:     false,
		Validate:    validateBool,
	},
}

var keyMap map[string]*Key

func init() {
	keyMap = make(map[string]*Key, len(Keys))
	for i := range Keys {
		keyMap[Keys[i].Key] = &Keys[i]
	}
}

// LookupKey returns the definition of key, or nil if it is unknown.
func LookupKey(key string) *Key {
	return keyMap[key]
}

// ValidateKey checks whether key is known and value is acceptable for it.
func ValidateKey(key, value string) error {
	k := keyMap[key]
	if k == nil {
		known := make([]string, 0, len(Keys))
		for _, k := range Keys {
			known = append(known, k.Key)
		}
		sort.Strings(known)
		return fmt.Errorf("unknown config key %q; valid keys: %s", key, strings.Join(known, ", "))
	}
	if k.Validate != nil {
		if err := k.Validate(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks every effective value that has a validator.
func Validate() error {
	for _, k := range Keys {
		if k.Validate == nil {
			continue
		}
		if err := ValidateKey(k.Key, GetString(k.Key)); err != nil {
			return err
		}
	}
	return nil
}

// Setting is one effective key/value pair, with secrets masked.
type Setting struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	EnvVar      string `json:"env_var"`
	Description string `json:"description"`
}

// Settings returns the effective value of every known key in table order.
func Settings() []Setting {
	out := make([]Setting, 0, len(Keys))
	for _, k := range Keys {
		value := GetString(k.Key)
		if k.Secret && value != "" {
			value = "********"
		}
		out = append(out, Setting{Key: k.Key, Value: value, EnvVar: k.EnvVar, Description: k.Description})
	}
	return out
}

// Validation helpers

func validateDialect(value string) error {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "mysql", "mariadb", "postgres", "postgresql", "pgx":
		return nil
	default:
		return fmt.Errorf("must be mysql or postgres, got %q", value)
	}
}

func validatePort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validatePositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be a number, got %q", value)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("must be a duration like 30s, got %q", value)
	}
	if d < 0 {
		return fmt.Errorf("must not be negative, got %s", value)
	}
	return nil
}

func validateLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("must be one of: debug, info, warn, error; got %q", value)
	}
}

func validateErrorPolicy(value string) error {
	switch value {
	case "strict", "best-effort":
		return nil
	default:
		return fmt.Errorf("must be strict or best-effort, got %q", value)
	}
}

func validateBool(value string) error {
	switch strings.ToLower(value) {
	case "true", "false", "1", "0", "yes", "no":
		return nil
	default:
		return fmt.Errorf("must be true or false, got %q", value)
	}
}
