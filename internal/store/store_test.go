package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("journal file not created: %v", err)
	}
	for _, table := range []string{"dispatches", "definition_sets"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing: %v", table, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	rec := createTestRecord("t-1", "call", "area", 1, 1)
	if _, err := s.db.Exec(
		`INSERT INTO dispatches (id, token, kind, generic, args, outcome, seq, depth, engine_version, ir_version)
		 VALUES (?, ?, ?, ?, '[]', 'ok', ?, ?, '0', '1')`,
		rec.ID, rec.Token, rec.Kind, rec.Generic, rec.Seq, rec.Depth,
	); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	for i := 0; i < 2; i++ {
		s, err = Open(path)
		if err != nil {
			t.Fatalf("reopen %d failed: %v", i, err)
		}
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM dispatches").Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 1 {
			t.Errorf("reopen %d: %d frames, want 1", i, n)
		}
		s.Close()
	}
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	if got, _ := s.pragma("user_version"); got != strconv.Itoa(currentSchemaVersion) {
		t.Errorf("user_version = %s, want %d", got, currentSchemaVersion)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	if _, err := Open("/nonexistent/dir/calls.db"); err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestDSN(t *testing.T) {
	got := dsn("/tmp/calls.db")
	if !strings.HasPrefix(got, "file:/tmp/calls.db?") {
		t.Errorf("dsn = %q, want file: URI for the path", got)
	}
	for _, want := range []string{"_journal_mode=WAL", "_synchronous=NORMAL", "_busy_timeout=5000", "_foreign_keys=on"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn = %q, missing %s", got, want)
		}
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		got, err := s.pragma(tt.name)
		if err != nil {
			t.Error(err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSchema_DispatchesIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "dispatches")
	for _, want := range []string{
		"idx_dispatches_token_seq",
		"idx_dispatches_seq",
		"idx_dispatches_generic",
		"idx_dispatches_parent",
		"idx_dispatches_token_kind",
	} {
		if !contains(indexes, want) {
			t.Errorf("dispatches missing index %s, have %v", want, indexes)
		}
	}
}

func TestSchema_KindConstraint(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO dispatches
		(id, token, kind, generic, args, outcome, seq, depth, engine_version, ir_version)
		VALUES ('x', 't', 'bogus', 'g', '[]', 'ok', 1, 1, '0', '1')
	`)
	if err == nil {
		t.Error("expected CHECK constraint failure for unknown kind")
	}
}

// legacyJournal writes a journal at the given schema version the way an
// older build would have left it.
func legacyJournal(t *testing.T, version int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open legacy journal: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	for v := 0; v < version; v++ {
		if err := migrations[v](db); err != nil {
			t.Fatalf("migration %d: %v", v+1, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	return path
}

func TestMigration_Upgrade(t *testing.T) {
	for from := 0; from < currentSchemaVersion; from++ {
		t.Run(fmt.Sprintf("v%d", from), func(t *testing.T) {
			path := legacyJournal(t, from)

			s, err := Open(path)
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			defer s.Close()

			var version int
			if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
				t.Fatalf("get user_version: %v", err)
			}
			if version != currentSchemaVersion {
				t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
			}
			indexes := getTableIndexes(t, s.db, "dispatches")
			for _, want := range []string{"idx_dispatches_generic", "idx_dispatches_parent", "idx_dispatches_token_kind"} {
				if !contains(indexes, want) {
					t.Errorf("upgrade from v%d did not create %s", from, want)
				}
			}
		})
	}
}

func TestMigration_RejectsNewerJournal(t *testing.T) {
	path := legacyJournal(t, currentSchemaVersion)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 9"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	db.Close()

	_, err = Open(path)
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("Open() error = %v, want newer schema error", err)
	}
}
