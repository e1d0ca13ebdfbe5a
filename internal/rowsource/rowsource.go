// Package rowsource defines the input boundary of the profiler: a columnar
// row source exposing, per partition, a lazy sequence of rows with stable
// column names and nullable string-typed cells. The profiling engine depends
// only on this package; concrete sources (CSV files, database tables, HTML
// tables) live under internal/source and register themselves here, the same
// way storage backends register with a kind-keyed factory.
package rowsource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Cell is one nullable value in a row. The zero value is null.
type Cell struct {
	Value string
	Valid bool
}

// String builds a present cell.
func String(v string) Cell { return Cell{Value: v, Valid: true} }

// Null builds an absent cell.
func Null() Cell { return Cell{} }

// Row is a positional row aligned with the source's column order. A row
// shorter than the column list reads as null for the missing trailing cells,
// which is how partial partitions degrade.
type Row []Cell

// Partition is a lazy row stream. Implementations are not safe for
// concurrent use; the engine drives each partition from exactly one worker.
type Partition interface {
	// Next returns the next row, or (nil, nil) when the partition is
	// exhausted. Implementations should honor ctx cancellation between rows.
	Next(ctx context.Context) (Row, error)

	// Close releases any resources the partition holds. Safe to call after
	// a partial read, which is how an aborted run discards workers.
	Close() error
}

// Source is a profiling input: a fixed column list and one or more
// partitions that can be scanned independently and in parallel.
type Source interface {
	// Columns returns the stable, ordered column names of the source.
	Columns(ctx context.Context) ([]string, error)

	// Partitions returns the partitions of the source. Each partition may
	// be consumed by a different goroutine; partitions jointly cover the
	// dataset exactly once.
	Partitions(ctx context.Context) ([]Partition, error)

	// Close releases the source (connection pools, file handles).
	Close() error
}

// Config selects and configures a registered source kind.
type Config struct {
	// Kind is the registered source kind: "csv", "sqlite", "postgres",
	// "mssql", "htmltable".
	Kind string

	// Path is the input path for file-backed kinds.
	Path string

	// DSN is the connection string for database-backed kinds.
	DSN string

	// Table is the table to profile for database-backed kinds.
	Table string

	// Options carries kind-specific knobs (charset, null literals, ...).
	Options map[string]string
}

// Option reads a kind-specific knob with a default.
func (c Config) Option(key, def string) string {
	if v, ok := c.Options[key]; ok {
		return v
	}
	return def
}

// Factory builds a source from its configuration.
type Factory func(ctx context.Context, cfg Config) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register installs a source factory under a kind name. Source packages call
// this from init; importing a source package is what makes its kind
// available.
func Register(kind string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(kind)] = f
}

// Open builds a source for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Source, error) {
	registryMu.RLock()
	f, ok := registry[strings.ToLower(cfg.Kind)]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("rowsource: unknown source kind %q (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}

// Kinds lists the registered source kinds, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
