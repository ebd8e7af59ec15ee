// Package testdb provides a migrated, file-backed SQLite database for tests.
package testdb

import (
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/postboard/db"
)

// Options returns driver options for a fresh database file under t.TempDir().
func Options(t *testing.T) db.DriverOptions {
	t.Helper()
	return db.DriverOptions{
		Database: filepath.Join(t.TempDir(), "postboard.db"),
		Extra: map[string]string{
			"_foreign_keys": "on",
			"_busy_timeout": "5000",
		},
	}
}

// Open creates a fresh database, applies migrations/sqlite3 and returns a pool
// over it that is closed when the test ends.
func Open(t *testing.T, hooks ...db.Hook) *db.DB {
	t.Helper()
	opts := Options(t)
	Migrate(t, opts.Database)

	d, err := db.OpenWithDriver("sqlite3", opts, db.Config{Hooks: hooks})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// Migrate applies every up migration to the SQLite file at path.
func Migrate(t *testing.T, path string) {
	t.Helper()
	m, err := migrate.New("file://"+migrationsDir(), "sqlite3://"+path)
	if err != nil {
		t.Fatalf("migrate init: %v", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
}

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations", "sqlite3")
}
