package csv

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"tableprof/internal/rowsource"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func drain(t *testing.T, s rowsource.Source) []rowsource.Row {
	t.Helper()

	parts, err := s.Partitions(context.Background())
	if err != nil {
		t.Fatalf("Partitions() error: %v", err)
	}
	var rows []rowsource.Row
	for _, p := range parts {
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
	}
	return rows
}

// TestHeaderAndNulls verifies header parsing (including BOM stripping),
// empty-cell null mapping and configured null literals.
func TestHeaderAndNulls(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "data.csv", "\uFEFFitem,totalNumber,status\nthingA,13.0,IN_TRANSIT\nthingB,,NULL\n")

	s, err := New(context.Background(), rowsource.Config{
		Kind: "csv", Path: path,
		Options: map[string]string{"null": "NULL"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	cols, err := s.Columns(context.Background())
	if err != nil {
		t.Fatalf("Columns() error: %v", err)
	}
	if want := []string{"item", "totalNumber", "status"}; !reflect.DeepEqual(cols, want) {
		t.Fatalf("Columns() = %v, want %v", cols, want)
	}

	rows := drain(t, s)
	if len(rows) != 2 {
		t.Fatalf("read %d rows, want 2", len(rows))
	}
	if !rows[0][1].Valid || rows[0][1].Value != "13.0" {
		t.Fatalf("row 0 cell 1 = %+v, want 13.0", rows[0][1])
	}
	if rows[1][1].Valid {
		t.Fatalf("empty cell read as present: %+v", rows[1][1])
	}
	if rows[1][2].Valid {
		t.Fatalf("configured null literal read as present: %+v", rows[1][2])
	}
}

// TestHeaderlessSyntheticColumns verifies col_N naming and that the peeked
// first record is replayed as data, not swallowed.
func TestHeaderlessSyntheticColumns(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "data.csv", "1,a\n2,b\n")

	s, err := New(context.Background(), rowsource.Config{
		Kind: "csv", Path: path,
		Options: map[string]string{"has_header": "false"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	cols, _ := s.Columns(context.Background())
	if want := []string{"col_1", "col_2"}; !reflect.DeepEqual(cols, want) {
		t.Fatalf("Columns() = %v, want %v", cols, want)
	}

	rows := drain(t, s)
	if len(rows) != 2 {
		t.Fatalf("read %d rows, want 2 (first record must replay)", len(rows))
	}
	if rows[0][0].Value != "1" || rows[1][1].Value != "b" {
		t.Fatalf("rows = %+v", rows)
	}
}

// TestCharsetDecoding verifies Latin-1 bytes decode through the configured
// charmap before CSV parsing.
func TestCharsetDecoding(t *testing.T) {
	t.Parallel()

	// "caf\xe9" is "café" in Latin-1.
	path := writeFile(t, "latin1.csv", "name\ncaf\xe9\n")

	s, err := New(context.Background(), rowsource.Config{
		Kind: "csv", Path: path,
		Options: map[string]string{"charset": "latin1"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	rows := drain(t, s)
	if len(rows) != 1 || rows[0][0].Value != "café" {
		t.Fatalf("rows = %+v, want one row with café", rows)
	}
}

// TestCustomDelimiter covers the comma option.
func TestCustomDelimiter(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "semi.csv", "a;b\n1;2\n")

	s, err := New(context.Background(), rowsource.Config{
		Kind: "csv", Path: path,
		Options: map[string]string{"comma": ";"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	cols, _ := s.Columns(context.Background())
	if len(cols) != 2 {
		t.Fatalf("Columns() = %v, want 2 columns", cols)
	}
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := New(context.Background(), rowsource.Config{Kind: "csv", Path: "/no/such/file.csv"}); err == nil {
			t.Fatal("New() on missing file: nil error")
		}
	})

	t.Run("empty file", func(t *testing.T) {
		t.Parallel()
		path := writeFile(t, "empty.csv", "")
		if _, err := New(context.Background(), rowsource.Config{Kind: "csv", Path: path}); err == nil {
			t.Fatal("New() on empty file: nil error")
		}
	})

	t.Run("bad charset", func(t *testing.T) {
		t.Parallel()
		path := writeFile(t, "x.csv", "a\n1\n")
		cfg := rowsource.Config{Kind: "csv", Path: path, Options: map[string]string{"charset": "ebcdic"}}
		if _, err := New(context.Background(), cfg); err == nil {
			t.Fatal("New() with unsupported charset: nil error")
		}
	})
}

// TestRegistryRoundTrip verifies the source registers under kind "csv".
func TestRegistryRoundTrip(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "r.csv", "a\n1\n")
	s, err := rowsource.Open(context.Background(), rowsource.Config{Kind: "csv", Path: path})
	if err != nil {
		t.Fatalf("rowsource.Open(csv) error: %v", err)
	}
	defer s.Close()

	if rows := drain(t, s); len(rows) != 1 {
		t.Fatalf("read %d rows, want 1", len(rows))
	}
}
