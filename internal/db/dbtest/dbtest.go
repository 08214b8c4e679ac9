// Package dbtest opens throwaway migrated databases for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"estore/api/internal/db"
)

// Open returns a migrated database in t's temp dir, closed on cleanup.
func Open(t testing.TB) *sql.DB {
	t.Helper()
	sqlite, err := db.OpenSQLite(filepath.Join(t.TempDir(), "estore.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	if err := db.Migrate(sqlite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return sqlite
}

// Exec runs setup statements, failing the test on the first error.
func Exec(t testing.TB, sqlite *sql.DB, stmts ...string) {
	t.Helper()
	for _, s := range stmts {
		if _, err := sqlite.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
}
