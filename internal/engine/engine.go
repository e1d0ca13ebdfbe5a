// Package engine orchestrates a profiling run: it plans the scan, fans
// partitions out to parallel workers, folds the partial per-column states,
// and finalizes them into the immutable report.
//
// The engine holds no shared mutable state during ingestion. Each worker
// owns the states for the partitions it scans; the only synchronization
// point is the merge fold, which is commutative and associative, so results
// do not depend on worker scheduling (beyond the documented floating-point
// summation order and sketch error bound).
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"tableprof/internal/aggregate"
	"tableprof/internal/metrics"
	"tableprof/internal/rowsource"
	"tableprof/pkg/profile"
)

var (
	// ErrNoSource reports a run attempted without an input source.
	ErrNoSource = errors.New("engine: no source configured")

	// ErrNoColumns reports a source that exposes no profilable columns:
	// there is nothing to profile, so the run aborts with no partial
	// result. A source with columns but no rows is not an error; it yields
	// degenerate per-column profiles instead.
	ErrNoColumns = errors.New("engine: source exposes no profilable columns")
)

// Logger is the minimal logging interface used by the runner.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Config controls a profiling run.
type Config struct {
	// Columns restricts profiling to these column names (case-insensitive).
	// Empty means all columns.
	Columns []string

	// Exclude removes columns from profiling (case-insensitive). Applied
	// before the allow-list.
	Exclude []string

	// HistogramMaxBins bounds the exact histogram per column. Zero means
	// aggregate.DefaultHistogramMaxBins; negative disables histograms.
	HistogramMaxBins int

	// DistinctStdError is the relative standard-error target of the
	// distinct-count sketch. Zero means sketch.DefaultStdError.
	DistinctStdError float64

	// Workers bounds parallel partition scanning. Zero or negative means
	// GOMAXPROCS.
	Workers int
}

// Runner executes profiling runs against one source.
type Runner struct {
	Source rowsource.Source
	Config Config

	// Logger receives stage lines. Nil discards them.
	Logger Logger

	// Metrics receives run counters. Nil discards them.
	Metrics metrics.Backend
}

func (r *Runner) logf(format string, v ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, v...)
	}
}

func (r *Runner) backend() metrics.Backend {
	if r.Metrics != nil {
		return r.Metrics
	}
	return metrics.Nop{}
}

// Run profiles the source and returns one immutable Profile per column.
// Per-value anomalies (unparsable numerics, short rows) are absorbed into
// the statistics; only whole-run failures (unreadable source, cancellation)
// surface as errors, and then no partial report is returned.
func (r *Runner) Run(ctx context.Context) (*profile.Report, error) {
	if r.Source == nil {
		return nil, ErrNoSource
	}

	start := time.Now()
	mb := r.backend()

	cols, err := r.Source.Columns(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: read source columns: %w", err)
	}

	plan := planScan(cols, r.Config)
	if len(plan.columns) == 0 {
		return nil, ErrNoColumns
	}

	parts, err := r.Source.Partitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: open partitions: %w", err)
	}

	workers := r.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(parts) {
		workers = len(parts)
	}
	if workers < 1 {
		workers = 1
	}
	r.logf("stage=scan columns=%d partitions=%d workers=%d passes=%d",
		len(plan.columns), len(parts), workers, plan.passes())

	merged, rows, err := r.scanAndMerge(ctx, plan, parts, workers)
	if err != nil {
		return nil, err
	}

	report := profile.NewReport()
	report.RowCount = rows
	report.Passes = plan.passes()
	report.Partitions = len(parts)
	for name, state := range merged {
		report.Columns[name] = state.Finalize()
	}
	report.Elapsed = time.Since(start)

	mb.IncCounter("tableprof.rows_scanned", float64(rows), fmt.Sprintf("passes:%d", plan.passes()))
	mb.IncCounter("tableprof.columns_profiled", float64(len(report.Columns)))
	mb.ObserveHistogram("tableprof.run_duration_ms", float64(report.Elapsed.Milliseconds()))

	r.logf("stage=finalize ok rows=%d columns=%d duration=%s",
		rows, len(report.Columns), report.Elapsed.Truncate(time.Millisecond))

	return report, nil
}

// partial is one worker's contribution: the states for the partitions it
// scanned plus the row count it observed.
type partial struct {
	states map[string]*aggregate.ColumnState
	rows   uint64
}

// scanAndMerge runs the partition workers and folds their partial states.
// On any worker error the run is canceled and all partial state is
// discarded; states hold no external resources, so dropping them is safe.
func (r *Runner) scanAndMerge(
	ctx context.Context,
	plan scanPlan,
	parts []rowsource.Partition,
	workers int,
) (map[string]*aggregate.ColumnState, uint64, error) {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	partCh := make(chan rowsource.Partition)
	outCh := make(chan partial, workers)
	errCh := make(chan error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// One state set per worker: partitions a worker scans in
			// sequence fold into the same states for free.
			p := partial{states: plan.newStates()}
			for part := range partCh {
				n, err := scanPartition(ctx, plan, part, p.states)
				p.rows += n
				if err != nil {
					errCh <- err
					cancel()
					return
				}
			}
			outCh <- p
		}()
	}

	go func() {
		defer close(partCh)
		for _, part := range parts {
			select {
			case partCh <- part:
			case <-ctx.Done():
				// Undispatched partitions still need closing.
				_ = part.Close()
			}
		}
	}()

	wg.Wait()
	close(outCh)
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, 0, err
	}

	// Cancellation can win the dispatch race before any worker observes it:
	// the feeder routes every partition to the Done branch and workers drain
	// a closed channel without error. An aborted run must surface the abort,
	// never a degenerate report built from whatever was scanned.
	if err := parent.Err(); err != nil {
		return nil, 0, fmt.Errorf("engine: scan aborted: %w", err)
	}

	// Linear fold over worker partials. Merge is associative and
	// commutative, so arrival order does not matter.
	merged := plan.newStates()
	var rows uint64
	for p := range outCh {
		rows += p.rows
		for name, state := range p.states {
			if err := merged[name].Merge(state); err != nil {
				return nil, 0, fmt.Errorf("engine: merge partials: %w", err)
			}
		}
	}

	return merged, rows, nil
}

// scanPartition drains one partition into the given states. Cells beyond
// the end of a short row, like cells for columns a partition never carried,
// read as nulls.
func scanPartition(
	ctx context.Context,
	plan scanPlan,
	part rowsource.Partition,
	states map[string]*aggregate.ColumnState,
) (uint64, error) {
	defer part.Close()

	var rows uint64
	for {
		row, err := part.Next(ctx)
		if err != nil {
			return rows, fmt.Errorf("engine: scan partition: %w", err)
		}
		if row == nil {
			return rows, nil
		}
		rows++

		for _, c := range plan.columns {
			state := states[c.name]
			if c.idx >= len(row) || !row[c.idx].Valid {
				state.ObserveNull()
				continue
			}
			state.Observe(row[c.idx].Value)
		}
	}
}
