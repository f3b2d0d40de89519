// package testing contains shared testing utilities
package testing

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/authshift/authshift/internal/shared"
)

// SourceSchema mirrors the legacy store tables the migration reads.
const SourceSchema = `
	CREATE TABLE users (
		name TEXT PRIMARY KEY,
		password_hash TEXT,
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_guest BOOLEAN NOT NULL DEFAULT FALSE,
		deactivated BOOLEAN NOT NULL DEFAULT FALSE,
		creation_ts BIGINT NOT NULL,
		appservice_id TEXT
	);
	CREATE TABLE user_threepids (
		user_id TEXT NOT NULL,
		medium TEXT NOT NULL,
		address TEXT NOT NULL,
		added_at BIGINT NOT NULL,
		validated_at BIGINT
	);
	CREATE TABLE user_external_ids (
		user_id TEXT NOT NULL,
		auth_provider TEXT NOT NULL,
		external_id TEXT NOT NULL
	);
	CREATE TABLE access_tokens (
		id INTEGER PRIMARY KEY,
		user_id TEXT NOT NULL,
		device_id TEXT,
		token TEXT NOT NULL,
		last_validated BIGINT,
		refresh_token_id BIGINT
	);
	CREATE TABLE refresh_tokens (
		id INTEGER PRIMARY KEY,
		token TEXT NOT NULL
	);
`

// MustOpenDB opens a file-backed SQLite database and closes it when the test
// ends. Tests use files rather than :memory: because the connection pool may
// hand out more than one connection.
func MustOpenDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase("sqlite3", path)
	if err != nil {
		t.Fatalf("Failed to open database %s: %v", path, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// NewSourceDB creates a temporary legacy store with the source schema applied.
func NewSourceDB(t *testing.T) *sql.DB {
	t.Helper()
	db := MustOpenDB(t, filepath.Join(t.TempDir(), "source.db"))
	MustExec(t, db, SourceSchema)
	return db
}

// NewTargetDB creates a temporary target store with its schema bootstrapped.
func NewTargetDB(t *testing.T) *sql.DB {
	t.Helper()
	db := MustOpenDB(t, filepath.Join(t.TempDir(), "target.db"))
	if err := shared.BootstrapTargetSchema(db); err != nil {
		t.Fatalf("Failed to bootstrap target schema: %v", err)
	}
	return db
}

func MustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("Failed to execute statement: %v", err)
	}
}

// CountRows returns the row count of a table.
func CountRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return count
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
