package main

import (
	"github.com/fhwedel/firma/internal/config"
	"github.com/fhwedel/firma/internal/firma"
	"github.com/fhwedel/firma/internal/storage"
)

// dbConfig assembles the connection settings from viper.
func dbConfig() *storage.Config {
	return &storage.Config{
		Dialect:        config.GetString("db.dialect"),
		DSN:            config.GetString("db.dsn"),
		Host:           config.GetString("db.host"),
		Port:           config.GetInt("db.port"),
		User:           config.GetString("db.user"),
		Password:       config.GetString("db.password"),
		Database:       config.GetString("db.name"),
		ConnectTimeout: config.GetDuration("db.connect-timeout"),
	}
}

// openDB connects to the configured server or exits with a hint.
// The caller closes the returned pool.
func openDB() *storage.DB {
	cfg := dbConfig()
	db, err := storage.Open(rootCtx, cfg, logger)
	if err != nil {
		if jsonOutput {
			outputJSONError(err, "connect")
		}
		FatalErrorWithHint(err.Error(),
			"Check db.host, db.port and db.name ('firma config list'), or pass --dsn")
	}
	return db
}

// openStore opens the database and wraps it in a firma.Store for --schema.
func openStore() (*storage.DB, *firma.Store) {
	db := openDB()
	return db, firma.NewStore(db, schemaFlag, logger)
}
