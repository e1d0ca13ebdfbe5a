// Package mssql implements a row source over a SQL Server table via
// database/sql and the go-mssqldb driver.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"tableprof/internal/rowsource"
)

func init() {
	rowsource.Register("mssql", New)
}

// Source profiles one table of one SQL Server database.
type Source struct {
	db      *sql.DB
	table   string
	columns []string
}

// New connects and resolves the table's column names.
func New(ctx context.Context, cfg rowsource.Config) (rowsource.Source, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mssql source: dsn is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("mssql source: table is required")
	}

	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mssql source: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mssql source: ping: %w", err)
	}

	s := &Source{db: db, table: cfg.Table}
	if s.columns, err = s.readColumns(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Source) readColumns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT TOP 0 * FROM %s", quoteIdent(s.table)))
	if err != nil {
		return nil, fmt.Errorf("mssql source: describe table %s: %w", s.table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("mssql source: columns of %s: %w", s.table, err)
	}
	return cols, rows.Err()
}

// Columns implements rowsource.Source.
func (s *Source) Columns(ctx context.Context) ([]string, error) {
	return s.columns, nil
}

// Partitions implements rowsource.Source: one streaming partition, as for
// the other database-backed sources.
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

// quoteIdent brackets an identifier, supporting dotted schema-qualified
// names ("dbo.shipments" -> "[dbo].[shipments]").
func quoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}

type partition struct {
	db    *sql.DB
	query string
	width int

	rows *sql.Rows
}

// Next implements rowsource.Partition. Cells scan into NullString;
// database/sql renders numeric and time values as text.
func (p *partition) Next(ctx context.Context) (rowsource.Row, error) {
	if p.rows == nil {
		rows, err := p.db.QueryContext(ctx, p.query)
		if err != nil {
			return nil, fmt.Errorf("mssql source: scan: %w", err)
		}
		p.rows = rows
	}

	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, fmt.Errorf("mssql source: scan: %w", err)
		}
		return nil, nil
	}

	cells := make([]sql.NullString, p.width)
	dest := make([]any, p.width)
	for i := range cells {
		dest[i] = &cells[i]
	}
	if err := p.rows.Scan(dest...); err != nil {
		return nil, fmt.Errorf("mssql source: scan row: %w", err)
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
