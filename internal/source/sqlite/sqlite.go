// Package sqlite implements a row source over a SQLite table using the
// pure-Go modernc.org driver, so profiling a .db file needs no cgo and no
// server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"tableprof/internal/rowsource"
)

func init() {
	rowsource.Register("sqlite", New)
}

// Source profiles one table of one SQLite database.
type Source struct {
	db      *sql.DB
	table   string
	columns []string
}

// New opens the database and resolves the table's column names. cfg.DSN
// takes priority; cfg.Path is accepted as a bare file path.
func New(ctx context.Context, cfg rowsource.Config) (rowsource.Source, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = cfg.Path
	}
	if dsn == "" {
		return nil, fmt.Errorf("sqlite source: dsn or path is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("sqlite source: table is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite source: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite source: ping: %w", err)
	}

	s := &Source{db: db, table: cfg.Table}
	if s.columns, err = s.readColumns(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Source) readColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteIdent(s.table)))
	if err != nil {
		return nil, fmt.Errorf("sqlite source: describe table %s: %w", s.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite source: columns of %s: %w", s.table, err)
	}
	return cols, rows.Err()
}

// Columns implements rowsource.Source.
func (s *Source) Columns(ctx context.Context) ([]string, error) {
	return s.columns, nil
}

// Partitions implements rowsource.Source. SQLite serializes access to one
// file, so the source exposes a single streaming partition.
func (s *Source) Partitions(ctx context.Context) ([]rowsource.Partition, error) {
	return []rowsource.Partition{
		&partition{
			db:    s.db,
			query: fmt.Sprintf("SELECT * FROM %s", quoteIdent(s.table)),
			width: len(s.columns),
		},
	}, nil
}

// Close implements rowsource.Source.
func (s *Source) Close() error { return s.db.Close() }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// partition streams the table through database/sql. Every cell scans into a
// NullString: the standard library converts numeric and time values to their
// string forms, which is exactly the raw-text view the profiler ingests.
type partition struct {
	db    *sql.DB
	query string
	width int

	rows *sql.Rows
}

// Next implements rowsource.Partition.
func (p *partition) Next(ctx context.Context) (rowsource.Row, error) {
	if p.rows == nil {
		rows, err := p.db.QueryContext(ctx, p.query)
		if err != nil {
			return nil, fmt.Errorf("sqlite source: scan: %w", err)
		}
		p.rows = rows
	}

	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, fmt.Errorf("sqlite source: scan: %w", err)
		}
		return nil, nil
	}

	cells := make([]sql.NullString, p.width)
	dest := make([]any, p.width)
	for i := range cells {
		dest[i] = &cells[i]
	}
	if err := p.rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("sqlite source: scan row: %w", err)
	}

	row := make(rowsource.Row, p.width)
	for i, c := range cells {
		if c.Valid {
			row[i] = rowsource.String(c.String)
		} else {
			row[i] = rowsource.Null()
		}
	}
	return row, nil
}

// Close implements rowsource.Partition.
func (p *partition) Close() error {
	if p.rows != nil {
		return p.rows.Close()
	}
	return nil
}
