package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("not found")

// pragma is a connection setting and the value SQLite reports once it
// is in effect.
type pragma struct {
	name     string
	value    string
	reported string
}

var pragmas = []pragma{
	{"journal_mode", "WAL", "wal"},
	{"synchronous", "NORMAL", "1"},
	{"busy_timeout", "5000", "5000"},
	{"foreign_keys", "ON", "1"},
}

// migrations[i] upgrades a database from user_version i to i+1.
var migrations = []func(*sql.Tx) error{
	addCaseIndex,
}

// SchemaVersion is the user_version of a fully migrated database.
var SchemaVersion = len(migrations)

// Store records runs and outcomes in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path, applying pragmas,
// the base schema and any pending migrations. Opening an existing
// database again is harmless.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Pragmas are per connection; keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, p := range pragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying connection for ad hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate applies pending migrations, one transaction per version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > SchemaVersion {
		return fmt.Errorf("history database has schema version %d, newer than supported %d", version, SchemaVersion)
	}

	for v := version; v < SchemaVersion; v++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if err := migrations[v](tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	return nil
}

// addCaseIndex indexes outcomes by case for CaseHistory.
func addCaseIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_outcomes_case
		ON outcomes(group_name, scenario)
	`)
	return err
}

// checkPragmas reports the first pragma whose value differs from what
// Open sets.
func (s *Store) checkPragmas() error {
	for _, p := range pragmas {
		var got string
		if err := s.db.QueryRow("PRAGMA " + p.name).Scan(&got); err != nil {
			return fmt.Errorf("failed to query %s: %w", p.name, err)
		}
		if got != p.reported {
			return fmt.Errorf("%s = %q, expected %q", p.name, got, p.reported)
		}
	}
	return nil
}
