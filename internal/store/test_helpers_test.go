package store

import (
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/defgeneric/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a frame with a content-addressed ID.
func createTestRecord(token, kind, generic string, seq int64, depth int, args ...ir.IRValue) ir.DispatchRecord {
	arr := ir.IRArray(args)
	if arr == nil {
		arr = ir.IRArray{}
	}
	return ir.DispatchRecord{
		ID:       ir.MustCallID(token, generic, arr, seq),
		Token:    token,
		Kind:     kind,
		Generic:  generic,
		Args:     arr,
		MethodID: 1,
		Outcome:  ir.OutcomeOK,
		Seq:      seq,
		Depth:    depth,
	}
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func contains(list []string, s string) bool {
	return slices.Contains(list, s)
}
