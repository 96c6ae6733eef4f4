package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the durable dispatch journal: one row per frame in
// dispatches, one row per distinct definition set in definition_sets.
// It implements engine.Journal.
//
// The database runs in WAL mode so trace and replay can read a journal
// that a running engine is still appending to.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	defHash string // definition set stamped on new records
}

// Open creates or opens the journal at path and brings its schema up to
// date. ":memory:" opens a private in-memory journal.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// dsn builds a go-sqlite3 connection string. The driver applies these
// pragmas to every connection it opens.
func dsn(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	return "file:" + path + "?" + params.Encode()
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB. Used by tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Schema versions, recorded in PRAGMA user_version:
//
//	0 - schema.sql only
//	1 - idx_dispatches_generic for trace --generic and ReadGeneric
//	2 - idx_dispatches_parent for ReadChildren, idx_dispatches_token_kind
//	    for trace --kind
const currentSchemaVersion = len(migrations)

// migrations[i] upgrades a database from version i to i+1.
var migrations = [...]func(execer) error{
	migrateToV1,
	migrateToV2,
}

// migrate applies schema.sql and every migration above the stored
// user_version in one transaction.
func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := tx.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	for v := version; v < currentSchemaVersion; v++ {
		if err := migrations[v](tx); err != nil {
			return err
		}
	}
	if version != currentSchemaVersion {
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return tx.Commit()
}

func migrateToV1(db execer) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_dispatches_generic
		ON dispatches(generic, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

func migrateToV2(db execer) error {
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_dispatches_parent ON dispatches(parent_id, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatches_token_kind ON dispatches(token, kind, seq)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}
	return nil
}

// pragma reads a single pragma value. Used by tests.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("query %s: %w", name, err)
	}
	return value, nil
}
