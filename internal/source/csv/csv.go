// Package csv implements a file-backed row source over delimited text.
//
// The file streams through encoding/csv with ReuseRecord, so memory stays
// proportional to one record regardless of file size. Legacy exports are
// often not UTF-8; the source can decode Latin-1 and Windows-1250 input on
// the fly.
//
// Options:
//
//	comma        field delimiter, single rune (default ",")
//	has_header   "false" to synthesize col_N names (default "true")
//	charset      "utf-8" (default), "latin1", "windows-1250"
//	null         comma-separated null literals (default: empty string only)
//	lazy_quotes  "true" to tolerate stray quotes (default "false")
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"tableprof/internal/rowsource"
)

func init() {
	rowsource.Register("csv", New)
}

// Source reads one CSV file as a single partition.
type Source struct {
	cfg     rowsource.Config
	columns []string
}

// New opens the file far enough to resolve its column names, then closes it;
// the partition re-opens for the actual scan.
func New(ctx context.Context, cfg rowsource.Config) (rowsource.Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv source: path is required")
	}

	s := &Source{cfg: cfg}

	p, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	s.columns = p.columns
	return s, nil
}

// Columns implements rowsource.Source.
func (s *Source) Columns(ctx context.Context) ([]string, error) {
	return s.columns, nil
}

// Partitions implements rowsource.Source. A CSV file is one sequential
// stream; record boundaries are not seekable without a prescan, so the
// source exposes a single partition and leaves parallelism to multi-source
// runs.
func (s *Source) Partitions(ctx context.Context) ([]rowsource.Partition, error) {
	p, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return []rowsource.Partition{p}, nil
}

// Close implements rowsource.Source.
func (s *Source) Close() error { return nil }

func (s *Source) open(ctx context.Context) (*partition, error) {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}

	var r io.Reader = f
	if enc, err := encodingFor(s.cfg.Option("charset", "utf-8")); err != nil {
		_ = f.Close()
		return nil, err
	} else if enc != nil {
		r = transform.NewReader(f, enc.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = s.cfg.Option("lazy_quotes", "false") == "true"

	comma := s.cfg.Option("comma", ",")
	for _, c := range comma {
		cr.Comma = c
		break
	}

	p := &partition{
		f:     f,
		cr:    cr,
		nulls: nullSet(s.cfg.Option("null", "")),
	}

	if s.cfg.Option("has_header", "true") != "false" {
		hdr, err := cr.Read()
		if err != nil {
			_ = f.Close()
			if err == io.EOF {
				return nil, fmt.Errorf("csv source: empty file %s", s.cfg.Path)
			}
			return nil, fmt.Errorf("csv source: read header: %w", err)
		}
		p.columns = make([]string, len(hdr))
		for i, h := range hdr {
			h = strings.TrimSpace(h)
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			p.columns[i] = h
		}
	} else {
		// Peek the first record to size the synthetic header, then replay
		// it as data.
		rec, err := cr.Read()
		if err != nil && err != io.EOF {
			_ = f.Close()
			return nil, fmt.Errorf("csv source: read first record: %w", err)
		}
		p.columns = make([]string, len(rec))
		for i := range rec {
			p.columns[i] = fmt.Sprintf("col_%d", i+1)
		}
		if len(rec) > 0 {
			p.pending = append([]string(nil), rec...)
		}
	}

	return p, nil
}

func encodingFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1250", "cp1250":
		return charmap.Windows1250, nil
	default:
		return nil, fmt.Errorf("csv source: unsupported charset %q", name)
	}
}

func nullSet(opt string) map[string]struct{} {
	set := map[string]struct{}{"": {}}
	for _, s := range strings.Split(opt, ",") {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

type partition struct {
	f       *os.File
	cr      *csv.Reader
	columns []string
	nulls   map[string]struct{}

	// pending holds the first record when it was consumed to synthesize
	// headers.
	pending []string
}

// Next implements rowsource.Partition.
func (p *partition) Next(ctx context.Context) (rowsource.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec []string
	if p.pending != nil {
		rec, p.pending = p.pending, nil
	} else {
		var err error
		rec, err = p.cr.Read()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv source: %w", err)
		}
	}

	row := make(rowsource.Row, len(rec))
	for i, v := range rec {
		v = strings.TrimSpace(v)
		if _, isNull := p.nulls[v]; isNull {
			row[i] = rowsource.Null()
			continue
		}
		row[i] = rowsource.String(v)
	}
	return row, nil
}

// Close implements rowsource.Partition.
func (p *partition) Close() error { return p.f.Close() }
