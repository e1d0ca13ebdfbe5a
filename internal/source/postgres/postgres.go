// Package postgres implements a row source over a PostgreSQL table using
// pgx. Every selected column is cast to text server-side so the profiler
// sees the same raw-string view it gets from file sources.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tableprof/internal/rowsource"
)

func init() {
	rowsource.Register("postgres", New)
}

// Source profiles one table through a pgx connection pool.
type Source struct {
	pool    *pgxpool.Pool
	table   string
	columns []string
}

// New connects and resolves the table's column names.
func New(ctx context.Context, cfg rowsource.Config) (rowsource.Source, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres source: dsn is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("postgres source: table is required")
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres source: pool: %w", err)
	}

	s := &Source{pool: pool, table: cfg.Table}
	if s.columns, err = s.readColumns(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Source) readColumns(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 0", quoteIdent(s.table)))
	if err != nil {
		return nil, fmt.Errorf("postgres source: describe table %s: %w", s.table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}
	return cols, rows.Err()
}

// Columns implements rowsource.Source.
func (s *Source) Columns(ctx context.Context) ([]string, error) {
	return s.columns, nil
}

// Partitions implements rowsource.Source. The source streams the table as
// one partition; splitting a live table into disjoint scans requires
// key-range knowledge the profiler does not assume. Parallelism still
// applies across sources/tables.
func (s *Source) Partitions(ctx context.Context) ([]rowsource.Partition, error) {
	sel := make([]string, len(s.columns))
	for i, c := range s.columns {
		sel[i] = quoteIdent(c) + "::text"
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(sel, ", "), quoteIdent(s.table))

	return []rowsource.Partition{
		&partition{pool: s.pool, query: query, width: len(s.columns)},
	}, nil
}

// Close implements rowsource.Source.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type partition struct {
	pool  *pgxpool.Pool
	query string
	width int

	rows pgx.Rows
}

// Next implements rowsource.Partition. The query casts every column to
// text, so row values arrive as string or nil.
func (p *partition) Next(ctx context.Context) (rowsource.Row, error) {
	if p.rows == nil {
		rows, err := p.pool.Query(ctx, p.query)
		if err != nil {
			return nil, fmt.Errorf("postgres source: scan: %w", err)
		}
		p.rows = rows
	}

	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, fmt.Errorf("postgres source: scan: %w", err)
		}
		return nil, nil
	}

	values, err := p.rows.Values()
	if err != nil {
		return nil, fmt.Errorf("postgres source: read row: %w", err)
	}

	row := make(rowsource.Row, p.width)
	for i := 0; i < p.width && i < len(values); i++ {
		switch v := values[i].(type) {
		case nil:
			row[i] = rowsource.Null()
		case string:
			row[i] = rowsource.String(v)
		default:
			row[i] = rowsource.String(fmt.Sprint(v))
		}
	}
	return row, nil
}

// Close implements rowsource.Partition.
func (p *partition) Close() error {
	if p.rows != nil {
		p.rows.Close()
	}
	return nil
}
