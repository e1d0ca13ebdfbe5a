package engine

import (
	"strings"

	"tableprof/internal/aggregate"
)

// plannedColumn is one column the scheduler selected for profiling: its
// normalized name plus its index in the source row layout.
type plannedColumn struct {
	name string
	idx  int
}

// scanPlan is the scheduler's decision for a run: which columns to profile,
// which accumulators each column carries, and how many passes over the data
// are needed.
//
// The scheduler uses a strict single-pass design: completeness, the type
// tally, the distinct sketch, numeric stats and the histogram are all
// computed speculatively in the same traversal. The histogram is the only
// statistic whose eligibility depends on the (unknown) true cardinality, and
// it is handled by bounded speculative accumulation: the accumulator tracks
// keys up to the configured bound and flips to an overflowed state beyond
// it, so memory stays bounded without a second scan. The pass count is
// recorded in the run report so the choice is observable.
type scanPlan struct {
	columns []plannedColumn
	options aggregate.Options
}

// passes returns the number of full dataset traversals the plan requires.
func (p scanPlan) passes() int { return 1 }

// newStates builds fresh per-partition states for every planned column.
func (p scanPlan) newStates() map[string]*aggregate.ColumnState {
	states := make(map[string]*aggregate.ColumnState, len(p.columns))
	for _, c := range p.columns {
		states[c.name] = aggregate.NewColumnState(c.name, p.options)
	}
	return states
}

// planScan selects the columns to profile. Names are normalized to lower
// case; the allow-list (when present) and the exclude list are applied the
// same way. Duplicated source names keep the first occurrence.
func planScan(sourceColumns []string, cfg Config) scanPlan {
	include := toSet(cfg.Columns)
	exclude := toSet(cfg.Exclude)

	plan := scanPlan{
		options: aggregate.Options{
			HistogramMaxBins: cfg.HistogramMaxBins,
			DistinctStdError: cfg.DistinctStdError,
		},
	}

	seen := make(map[string]struct{}, len(sourceColumns))
	for i, raw := range sourceColumns {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if _, skip := exclude[name]; skip {
			continue
		}
		if len(include) > 0 {
			if _, ok := include[name]; !ok {
				continue
			}
		}

		plan.columns = append(plan.columns, plannedColumn{name: name, idx: i})
	}

	return plan
}

func toSet(names []string) map[string]struct{} {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
