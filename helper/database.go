package helper

import (
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"testing"

	_ "modernc.org/sqlite"
)

// Database wraps the sqlite connection together with its logger
type Database struct {
	Name     string
	Instance *sql.DB
	Logger   *slog.Logger
}

// NewDatabase opens the store file. Opening is lazy, connection problems
// surface on first use.
func NewDatabase(name string, config *Configuration, logger *slog.Logger) *Database {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", config.DBPath)
	instance, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Panicf("error opening database %v: %#v", config.DBPath, err)
	}

	// sqlite locks the whole file per writer
	instance.SetMaxOpenConns(1)

	return &Database{
		Name:     name,
		Instance: instance,
		Logger:   logger,
	}
}

// Close closes the underlying connection.
func (db *Database) Close() error {
	if db.Instance == nil {
		return nil
	}
	return db.Instance.Close()
}

// SetTestConfigEnvs points the configuration at a temporary store so
// tests never touch a real one.
func SetTestConfigEnvs(t testing.TB, dbPath string) {
	t.Setenv("VEIL_DB_PATH", dbPath)
	t.Setenv("VEIL_PASSPHRASE", "correct horse battery staple")
	t.Setenv("VEIL_THEME", "starwars")
	t.Setenv("VEIL_LOG_LEVEL", "error")
}

// NewTestDatabase opens a store with a quiet logger for tests.
func NewTestDatabase(config *Configuration) *Database {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDatabase("veil-test", config, logger)
}
