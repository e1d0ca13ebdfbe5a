// Package htmltable implements a row source over an HTML <table> element.
// Published datasets are sometimes only available as rendered tables; this
// source extracts header and body rows with goquery so such pages can be
// profiled like any other input.
//
// Options:
//
//	selector  CSS selector for the table (default "table", first match)
//	null      comma-separated null literals (default: empty cell only)
package htmltable

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tableprof/internal/rowsource"
)

func init() {
	rowsource.Register("htmltable", New)
}

// Source holds the extracted table, fully materialized. HTML documents are
// parsed as a whole anyway, so streaming buys nothing here.
type Source struct {
	columns []string
	rows    []rowsource.Row
}

// New parses the document at cfg.Path and extracts the selected table.
func New(ctx context.Context, cfg rowsource.Config) (rowsource.Source, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("htmltable source: path is required")
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("htmltable source: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("htmltable source: parse %s: %w", cfg.Path, err)
	}

	table := doc.Find(cfg.Option("selector", "table")).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("htmltable source: no table matches %q in %s", cfg.Option("selector", "table"), cfg.Path)
	}

	nulls := nullSet(cfg.Option("null", ""))

	s := &Source{}
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		// Header: the first row carrying <th> cells.
		if s.columns == nil {
			ths := tr.Find("th")
			if ths.Length() > 0 {
				ths.Each(func(_ int, th *goquery.Selection) {
					s.columns = append(s.columns, strings.TrimSpace(th.Text()))
				})
				return
			}
		}

		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}

		row := make(rowsource.Row, 0, tds.Length())
		tds.Each(func(_ int, td *goquery.Selection) {
			text := strings.TrimSpace(td.Text())
			if _, isNull := nulls[text]; isNull {
				row = append(row, rowsource.Null())
				return
			}
			row = append(row, rowsource.String(text))
		})
		s.rows = append(s.rows, row)
	})

	if s.columns == nil {
		// Headerless table: synthesize names from the widest row.
		width := 0
		for _, r := range s.rows {
			if len(r) > width {
				width = len(r)
			}
		}
		for i := 0; i < width; i++ {
			s.columns = append(s.columns, fmt.Sprintf("col_%d", i+1))
		}
	}
	if len(s.columns) == 0 {
		return nil, fmt.Errorf("htmltable source: table in %s has no columns", cfg.Path)
	}

	return s, nil
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

// Columns implements rowsource.Source.
func (s *Source) Columns(ctx context.Context) ([]string, error) {
	return s.columns, nil
}

// Partitions implements rowsource.Source.
func (s *Source) Partitions(ctx context.Context) ([]rowsource.Partition, error) {
	return []rowsource.Partition{&partition{rows: s.rows}}, nil
}

// Close implements rowsource.Source.
func (s *Source) Close() error { return nil }

type partition struct {
	rows []rowsource.Row
	next int
}

func (p *partition) Next(ctx context.Context) (rowsource.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.next >= len(p.rows) {
		return nil, nil
	}
	r := p.rows[p.next]
	p.next++
	return r, nil
}

func (p *partition) Close() error { return nil }
