// Package testutil starts throwaway database servers for integration tests.
//
// Each server is started once per test binary and shared; every test gets
// its own database (MySQL) or schema (PostgreSQL) so tests stay isolated.
// Tests are skipped under -short and when no Docker provider is reachable.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    db, schema := testutil.MariaDB(t).Fresh(t)
//	    testutil.LoadFirma(t, db, schema)
//	}
package testutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fhwedel/firma/internal/storage"
)

const (
	mariaDBImage  = "mariadb:11"
	postgresImage = "postgres:16-alpine"
	mongoImage    = "mongo:7"

	testPassword = "test_password"
)

// Server is a running database container.
type Server struct {
	Container testcontainers.Container
	Config    storage.Config
}

type sharedServer struct {
	once   sync.Once
	server *Server
	err    error
}

var (
	sharedMariaDB  sharedServer
	sharedPostgres sharedServer
	sharedMongo    sharedServer

	freshCounter atomic.Int64
)

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func (s *sharedServer) get(t *testing.T, start func(ctx context.Context) (*Server, error)) *Server {
	t.Helper()
	requireDocker(t)
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()
		s.server, s.err = start(ctx)
	})
	if s.err != nil {
		t.Fatalf("Failed to start test container: %v", s.err)
	}
	return s.server
}

// MariaDB returns the shared MariaDB server.
func MariaDB(t *testing.T) *Server {
	t.Helper()
	return sharedMariaDB.get(t, func(ctx context.Context) (*Server, error) {
		return startServer(ctx, testcontainers.ContainerRequest{
			Image:        mariaDBImage,
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MARIADB_ROOT_PASSWORD": testPassword,
				"MARIADB_DATABASE":      "firma",
			},
			// The entrypoint starts a temporary server for initialization first.
			WaitingFor: wait.ForLog("ready for connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		}, storage.Config{
			Dialect:  storage.DialectMySQL,
			User:     "root",
			Password: testPassword,
			Database: "firma",
		})
	})
}

// Postgres returns the shared PostgreSQL server.
func Postgres(t *testing.T) *Server {
	t.Helper()
	return sharedPostgres.get(t, func(ctx context.Context) (*Server, error) {
		return startServer(ctx, testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "firma",
				"POSTGRES_USER":     "firma",
				"POSTGRES_PASSWORD": testPassword,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		}, storage.Config{
			Dialect:  storage.DialectPostgres,
			User:     "firma",
			Password: testPassword,
			Database: "firma",
		})
	})
}

// Mongo returns the connection URI of the shared MongoDB server.
func Mongo(t *testing.T) string {
	t.Helper()
	s := sharedMongo.get(t, func(ctx context.Context) (*Server, error) {
		return startServer(ctx, testcontainers.ContainerRequest{
			Image:        mongoImage,
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor: wait.ForLog("Waiting for connections").
				WithStartupTimeout(2 * time.Minute),
		}, storage.Config{})
	})
	return "mongodb://" + net.JoinHostPort(s.Config.Host, strconv.Itoa(s.Config.Port))
}

func startServer(ctx context.Context, req testcontainers.ContainerRequest, cfg storage.Config) (*Server, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", req.Image, err)
	}

	// Every request exposes a single port, so the first endpoint is the one we want.
	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get container endpoint: %w", err)
	}
	host, port, err := net.SplitHostPort(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse container endpoint %q: %w", endpoint, err)
	}
	cfg.Host = host
	if cfg.Port, err = strconv.Atoi(port); err != nil {
		return nil, fmt.Errorf("failed to parse container port %q: %w", port, err)
	}
	cfg.ConnectTimeout = 30 * time.Second
	return &Server{Container: container, Config: cfg}, nil
}

// Open connects to the server's default database.
func (s *Server) Open(t *testing.T) *storage.DB {
	t.Helper()
	cfg := s.Config
	db, err := storage.Open(context.Background(), &cfg, nil)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", cfg.Dialect, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Fresh creates an empty database (MySQL) or schema (PostgreSQL) for the
// calling test and returns a connection plus the schema name to migrate.
// Everything is dropped when the test ends.
func (s *Server) Fresh(t *testing.T) (*storage.DB, string) {
	t.Helper()
	ctx := context.Background()
	name := fmt.Sprintf("firma_t%d", freshCounter.Add(1))

	admin := s.Open(t)
	d := admin.Dialect()

	switch d.Name() {
	case storage.DialectPostgres:
		if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+d.Quote(name)); err != nil {
			t.Fatalf("Failed to create schema %s: %v", name, err)
		}
		t.Cleanup(func() {
			_, _ = admin.ExecContext(context.Background(), "DROP SCHEMA IF EXISTS "+d.Quote(name)+" CASCADE")
		})
		return admin, name
	default:
		if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+d.Quote(name)); err != nil {
			t.Fatalf("Failed to create database %s: %v", name, err)
		}
		t.Cleanup(func() {
			_, _ = admin.ExecContext(context.Background(), "DROP DATABASE IF EXISTS "+d.Quote(name))
		})
		cfg := s.Config
		cfg.Database = name
		db, err := storage.Open(ctx, &cfg, nil)
		if err != nil {
			t.Fatalf("Failed to connect to %s: %v", name, err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return db, name
	}
}
