package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"

	"tableprof/internal/rowsource"
)

// newTestDB creates a throwaway database file with the reference shipment
// table: mixed types, NULLs, and an integer column stored natively.
func newTestDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE shipments (item TEXT, total REAL, status TEXT, valuable INTEGER)`,
		`INSERT INTO shipments VALUES
			('thingA', 13.0, 'IN_TRANSIT', 1),
			('thingB', 5, 'DELAYED', NULL),
			('thingC', NULL, 'DELAYED', 0)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return path
}

// TestScanTable verifies columns resolve from the table and every cell
// arrives as nullable text, including numerics converted by database/sql.
func TestScanTable(t *testing.T) {
	t.Parallel()

	path := newTestDB(t)

	s, err := New(context.Background(), rowsource.Config{Kind: "sqlite", Path: path, Table: "shipments"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	cols, err := s.Columns(context.Background())
	if err != nil {
		t.Fatalf("Columns() error: %v", err)
	}
	if want := []string{"item", "total", "status", "valuable"}; !reflect.DeepEqual(cols, want) {
		t.Fatalf("Columns() = %v, want %v", cols, want)
	}

	parts, err := s.Partitions(context.Background())
	if err != nil {
		t.Fatalf("Partitions() error: %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("partitions = %d, want 1", len(parts))
	}

	var rows []rowsource.Row
	p := parts[0]
	for {
		r, err := p.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error: %v", err)
		}
		if r == nil {
			break
		}
		rows = append(rows, r)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("read %d rows, want 3", len(rows))
	}
	if !rows[0][0].Valid || rows[0][0].Value != "thingA" {
		t.Fatalf("row 0 item = %+v", rows[0][0])
	}
	if rows[1][3].Valid {
		t.Fatalf("NULL valuable cell read as present: %+v", rows[1][3])
	}
	if rows[2][1].Valid {
		t.Fatalf("NULL total cell read as present: %+v", rows[2][1])
	}
	// Integer-typed cells arrive as their text form.
	if rows[0][3].Value != "1" {
		t.Fatalf("valuable cell = %+v, want text form of 1", rows[0][3])
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  rowsource.Config
	}{
		{"missing dsn and path", rowsource.Config{Kind: "sqlite", Table: "t"}},
		{"missing table", rowsource.Config{Kind: "sqlite", Path: "x.db"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := New(context.Background(), tt.cfg); err == nil {
				t.Fatal("New() = nil error, want validation error")
			}
		})
	}
}

// TestMissingTable verifies a nonexistent table fails at open, not at scan.
func TestMissingTable(t *testing.T) {
	t.Parallel()

	path := newTestDB(t)
	if _, err := New(context.Background(), rowsource.Config{Kind: "sqlite", Path: path, Table: "nope"}); err == nil {
		t.Fatal("New() with missing table: nil error")
	}
}
