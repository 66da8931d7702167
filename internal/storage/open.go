package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	// Register the pgx database/sql driver ("pgx") for PostgreSQL connections
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Config holds connection settings. DSN, when set, wins over the discrete fields.
type Config struct {
	Dialect        string
	DSN            string
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	ConnectTimeout time.Duration // Max time spent retrying the initial ping (0 = single attempt)
}

// DB is an open connection pool plus the dialect it speaks.
type DB struct {
	*sql.DB
	dialect  Dialect
	database string
}

// Dialect returns the SQL dialect of the connection.
func (db *DB) Dialect() Dialect { return db.dialect }

// Database returns the configured database name (may be empty when a raw DSN is used).
func (db *DB) Database() string { return db.database }

// Wrap attaches a dialect to an already opened *sql.DB. Used by tests and
// by callers that manage the pool themselves.
func Wrap(sqlDB *sql.DB, d Dialect, database string) *DB {
	return &DB{DB: sqlDB, dialect: d, database: database}
}

// BuildDSN constructs the driver connection string for cfg.
func BuildDSN(cfg *Config, d Dialect) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	switch d.Name() {
	case DialectPostgres:
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme:   "postgres",
			Host:     net.JoinHostPort(host, strconv.Itoa(port)),
			Path:     "/" + cfg.Database,
			RawQuery: "sslmode=disable",
		}
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else if cfg.User != "" {
			u.User = url.User(cfg.User)
		}
		return u.String()
	default:
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
		mc.DBName = cfg.Database
		mc.ParseTime = true
		return mc.FormatDSN()
	}
}

// Open opens a pool for cfg and pings it, retrying transient connection
// errors with exponential backoff until cfg.ConnectTimeout elapses.
func Open(ctx context.Context, cfg *Config, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d, err := ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}

	dsn := BuildDSN(cfg, d)
	sqlDB, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", d.Name(), err)
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	bo := newConnectBackoff(cfg.ConnectTimeout)
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		pingErr := sqlDB.PingContext(ctx)
		if pingErr == nil {
			return nil
		}
		if !isRetryableError(pingErr) {
			return backoff.Permanent(pingErr)
		}
		logger.Debug("database not reachable yet, retrying",
			zap.String("dialect", d.Name()),
			zap.String("dsn", RedactDSN(dsn)),
			zap.Int("attempt", attempt),
			zap.Error(pingErr))
		return pingErr
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		_ = sqlDB.Close()
		if strings.Contains(strings.ToLower(err.Error()), "connection refused") {
			return nil, fmt.Errorf("failed to connect to %s server at %s:%d: %w\n\nIs the database server running?",
				d.Name(), cfg.Host, cfg.Port, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Name(), err)
	}

	logger.Debug("database connection established",
		zap.String("dialect", d.Name()),
		zap.String("database", cfg.Database))
	return &DB{DB: sqlDB, dialect: d, database: cfg.Database}, nil
}

func newConnectBackoff(maxElapsed time.Duration) backoff.BackOff {
	if maxElapsed <= 0 {
		return &backoff.StopBackOff{}
	}
	// BackOff implementations are stateful; always return a fresh instance.
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// isRetryableError reports whether err is a transient connection error.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, s := range []string{
		"driver: bad connection",
		"invalid connection",
		"broken pipe",
		"connection reset",
		"connection refused",
		"lost connection",
		"gone away",
		"i/o timeout",
		"the database system is starting up",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}
