// Command profile computes column profiles for one table of data and prints
// the report as JSON.
//
// The input can be a delimited file, an HTML page containing a table, or a
// live database table:
//
//	profile -csv data.csv
//	profile -html page.html
//	profile -kind sqlite -db shipments.db -table shipments
//	profile -kind postgres -dsn "postgres://user:pw@host/db" -table shipments
//	profile -kind mssql -dsn "sqlserver://user:pw@host?database=db" -table dbo.shipments
//
// Every value is read in a single pass per partition. The report carries, per
// column: completeness, an approximate distinct count, a bounded exact value
// histogram, the dominant data type, and (for numeric columns) min/max/mean/
// standard deviation.
//
// # DSN overrides
//
// For containerized runs the DSN can also come from the environment: the DSN
// env var is used when -dsn is empty. This keeps credentials out of shell
// history and CI command lines.
//
// # Metrics
//
// With -datadog, run counters and durations are buffered and submitted to
// Datadog via the official client; credentials come from the usual DD_API_KEY
// environment. Without the flag no metrics leave the process.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tableprof/internal/engine"
	"tableprof/internal/metrics"
	"tableprof/internal/metrics/datadog"
	"tableprof/internal/rowsource"

	// Row-source backends self-register by kind.
	_ "tableprof/internal/source/csv"
	_ "tableprof/internal/source/htmltable"
	_ "tableprof/internal/source/mssql"
	_ "tableprof/internal/source/postgres"
	_ "tableprof/internal/source/sqlite"
)

func main() {
	var (
		// flagCSV is a shortcut for -kind csv -path <file>.
		flagCSV = flag.String("csv", "", "Path of a CSV file to profile (shortcut for -kind csv)")

		// flagHTML is a shortcut for -kind htmltable -path <file>.
		flagHTML = flag.String("html", "", "Path of an HTML file whose first <table> is profiled (shortcut for -kind htmltable)")

		// flagKind selects the source backend explicitly. Registered kinds
		// include csv, htmltable, sqlite, postgres, mssql.
		flagKind = flag.String("kind", "", "Source kind: "+strings.Join(rowsource.Kinds(), "|"))

		// flagPath is the input file path for file-backed kinds (csv,
		// htmltable, sqlite).
		flagPath = flag.String("path", "", "Input file path (file-backed sources)")

		// flagDB is an alias of -path kept for the common sqlite invocation.
		flagDB = flag.String("db", "", "Database file path (alias of -path)")

		// flagDSN is the connection string for database-backed kinds. When
		// empty, the DSN environment variable is consulted.
		flagDSN = flag.String("dsn", "", "Database DSN; falls back to the DSN env var when empty")

		// flagTable names the table to profile for database-backed kinds.
		flagTable = flag.String("table", "", "Table name (database sources); schema-qualified names are accepted")

		// flagOptions carries source-specific knobs as key=value pairs, e.g.
		//   -options "comma=;,charset=latin1,null=NA"
		// for a semicolon-separated Latin-1 CSV with NA nulls.
		flagOptions = flag.String("options", "", "Comma-separated key=value source options")

		// flagColumns restricts the profile to the named columns. Matching is
		// case-insensitive. Empty means all columns.
		flagColumns = flag.String("columns", "", "Comma-separated list of columns to profile (default: all)")

		// flagExclude removes columns from the profile after -columns is
		// applied.
		flagExclude = flag.String("exclude", "", "Comma-separated list of columns to skip")

		// flagBins bounds the per-column exact histogram. Once a column sees
		// more distinct values than this, its histogram is dropped from the
		// report (the approximate distinct count still covers it). Negative
		// disables histograms entirely.
		flagBins = flag.Int("bins", 0, "Max distinct values tracked per histogram (0 = default, negative disables)")

		// flagStdErr is the relative standard-error target for approximate
		// distinct counting. Smaller targets cost more memory per column.
		flagStdErr = flag.Float64("stderr", 0, "Target relative standard error of distinct counts (0 = default 0.02)")

		// flagWorkers bounds how many partitions are scanned in parallel.
		flagWorkers = flag.Int("workers", 0, "Max partitions scanned concurrently (0 = number of partitions)")

		// flagPretty controls JSON indentation of the report.
		flagPretty = flag.Bool("pretty", true, "Pretty-print the JSON report")

		// flagTimeout bounds the whole run. Zero means no deadline.
		flagTimeout = flag.Duration("timeout", 0, "Abort the run after this duration (0 = none)")

		// flagDatadog enables the Datadog metrics backend for this run.
		flagDatadog = flag.Bool("datadog", false, "Submit run metrics to Datadog (credentials from DD_API_KEY env)")

		// flagDDTags adds extra Datadog tags, e.g. "env:prod,team:data".
		flagDDTags = flag.String("dd-tags", "", "Comma-separated extra Datadog tags")
	)
	flag.Parse()

	log.SetFlags(0)

	cfg, err := sourceConfig(*flagCSV, *flagHTML, *flagKind, *flagPath, *flagDB, *flagDSN, *flagTable, *flagOptions)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *flagTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *flagTimeout)
		defer cancel()
	}

	var backend metrics.Backend = metrics.Nop{}
	if *flagDatadog {
		dd := datadog.New(ctx, datadog.Options{
			Tags:       datadog.ParseTagsCSV(*flagDDTags),
			FlushEvery: 15 * time.Second,
		})
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := dd.Close(closeCtx); err != nil {
				log.Printf("stage=metrics flush failed err=%v", err)
			}
		}()
		backend = dd
	}

	src, err := rowsource.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("stage=open source=%s err=%v", cfg.Kind, err)
	}
	defer src.Close()

	runner := &engine.Runner{
		Source: src,
		Config: engine.Config{
			Columns:          splitList(*flagColumns),
			Exclude:          splitList(*flagExclude),
			HistogramMaxBins: *flagBins,
			DistinctStdError: *flagStdErr,
			Workers:          *flagWorkers,
		},
		Logger:  log.Default(),
		Metrics: backend,
	}

	report, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("stage=profile source=%s err=%v", cfg.Kind, err)
	}

	enc := json.NewEncoder(os.Stdout)
	if *flagPretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(report); err != nil {
		log.Fatalf("stage=encode err=%v", err)
	}
}

// sourceConfig resolves the flag shortcuts into one rowsource.Config.
// Precedence: -csv and -html imply their kind; otherwise -kind is required.
// The DSN falls back to the DSN env var so containers can inject credentials.
func sourceConfig(csvPath, htmlPath, kind, path, db, dsn, table, options string) (rowsource.Config, error) {
	cfg := rowsource.Config{Kind: kind, Path: path, DSN: dsn, Table: table}

	switch {
	case csvPath != "":
		cfg.Kind, cfg.Path = "csv", csvPath
	case htmlPath != "":
		cfg.Kind, cfg.Path = "htmltable", htmlPath
	}
	if cfg.Path == "" {
		cfg.Path = db
	}
	if cfg.DSN == "" {
		cfg.DSN = strings.TrimSpace(os.Getenv("DSN"))
	}
	if cfg.Kind == "" {
		return cfg, fmt.Errorf("missing -kind (or -csv / -html shortcut)")
	}

	if options != "" {
		cfg.Options = map[string]string{}
		for _, pair := range strings.Split(options, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return cfg, fmt.Errorf("malformed -options entry %q, want key=value", pair)
			}
			cfg.Options[strings.TrimSpace(k)] = v
		}
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
