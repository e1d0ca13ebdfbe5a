package datadog

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// fakeSubmitter records submitted payloads instead of doing HTTP.
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (f *fakeSubmitter) SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, f.err
}

func (f *fakeSubmitter) submitted() []datadogV2.MetricPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]datadogV2.MetricPayload(nil), f.payloads...)
}

// newTestBackend builds a backend with all seams stubbed: fixed clock, a
// ticker that never fires (tests drive Flush explicitly), fake submitter.
func newTestBackend(t *testing.T, fake *fakeSubmitter) *Backend {
	t.Helper()

	b := New(context.Background(), Options{
		JobName: "testjob",
		now:     func() time.Time { return time.Unix(1700000000, 0) },
		newTicker: func(d time.Duration) *time.Ticker {
			return time.NewTicker(time.Hour)
		},
		submitter: fake,
	})
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func seriesByMetric(p datadogV2.MetricPayload) map[string]datadogV2.MetricSeries {
	out := make(map[string]datadogV2.MetricSeries, len(p.Series))
	for _, s := range p.Series {
		out[s.Metric] = s
	}
	return out
}

// TestFlushSubmitsBufferedCounters verifies counters accumulate between
// flushes, carry the job tag plus the caller's tags, and reset after Flush.
func TestFlushSubmitsBufferedCounters(t *testing.T) {
	t.Parallel()

	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)

	b.IncCounter("tableprof.rows_scanned", 100, "passes:1")
	b.IncCounter("tableprof.rows_scanned", 50, "passes:1")
	b.IncCounter("tableprof.columns_profiled", 4)

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	got := fake.submitted()
	if len(got) != 1 {
		t.Fatalf("submitted %d payloads, want 1", len(got))
	}

	byMetric := seriesByMetric(got[0])
	rows, ok := byMetric["tableprof.rows_scanned"]
	if !ok {
		t.Fatal("missing series tableprof.rows_scanned")
	}
	if v := *rows.Points[0].Value; v != 150 {
		t.Fatalf("rows_scanned = %v, want 150 (accumulated)", v)
	}
	if ts := *rows.Points[0].Timestamp; ts != 1700000000 {
		t.Fatalf("timestamp = %d, want injected clock value", ts)
	}

	wantTags := []string{"job:testjob", "passes:1"}
	gotTags := append([]string(nil), rows.Tags...)
	sort.Strings(gotTags)
	sort.Strings(wantTags)
	if len(gotTags) != len(wantTags) || gotTags[0] != wantTags[0] || gotTags[1] != wantTags[1] {
		t.Fatalf("tags = %v, want %v", rows.Tags, wantTags)
	}

	// Second flush with no new data submits nothing.
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("empty Flush() error: %v", err)
	}
	if n := len(fake.submitted()); n != 1 {
		t.Fatalf("empty flush submitted a payload (total %d)", n)
	}
}

// TestFlushHistogramPercentiles verifies one buffered distribution expands
// into the fixed percentile gauge set.
func TestFlushHistogramPercentiles(t *testing.T) {
	t.Parallel()

	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)

	for i := 1; i <= 100; i++ {
		b.ObserveHistogram("tableprof.run_duration_ms", float64(i))
	}
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}

	byMetric := seriesByMetric(fake.submitted()[0])

	checks := map[string]float64{
		"tableprof.run_duration_ms.p50":     50,
		"tableprof.run_duration_ms.max":     100,
		"tableprof.run_duration_ms.samples": 100,
	}
	for metric, want := range checks {
		s, ok := byMetric[metric]
		if !ok {
			t.Fatalf("missing series %s", metric)
		}
		if v := *s.Points[0].Value; v != want {
			t.Fatalf("%s = %v, want %v", metric, v, want)
		}
	}
}

// TestPercentileNearestRank pins the rank definition: the value at rank
// ceil(p*n), 1-based, never an interpolated or midpoint-rounded neighbor.
func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	hundred := make([]float64, 100)
	for i := range hundred {
		hundred[i] = float64(i + 1)
	}

	tests := []struct {
		name   string
		sorted []float64
		p      float64
		want   float64
	}{
		{"p50 of 1..100", hundred, 0.50, 50},
		{"p90 of 1..100", hundred, 0.90, 90},
		{"p99 of 1..100", hundred, 0.99, 99},
		{"single sample", []float64{7}, 0.50, 7},
		{"two samples p50", []float64{1, 2}, 0.50, 1},
		{"empty", nil, 0.50, 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := percentileNearestRank(tt.sorted, tt.p); got != tt.want {
				t.Fatalf("percentileNearestRank(%v) = %v, want %v", tt.p, got, tt.want)
			}
		})
	}
}

// TestNegativeAndZeroValuesIgnored verifies the hot-path guards: non-positive
// counter deltas and negative observations never reach the buffers.
func TestNegativeAndZeroValuesIgnored(t *testing.T) {
	t.Parallel()

	fake := &fakeSubmitter{}
	b := newTestBackend(t, fake)

	b.IncCounter("c", 0)
	b.IncCounter("c", -5)
	b.ObserveHistogram("h", -1)

	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
	if n := len(fake.submitted()); n != 0 {
		t.Fatalf("flush submitted %d payloads for ignored values, want 0", n)
	}
}

// TestCloseFlushesTail verifies Close stops the loop and performs the final
// flush, so short-lived CLI runs still deliver their metrics.
func TestCloseFlushesTail(t *testing.T) {
	t.Parallel()

	fake := &fakeSubmitter{}
	b := New(context.Background(), Options{
		JobName:   "tail",
		now:       func() time.Time { return time.Unix(42, 0) },
		newTicker: func(d time.Duration) *time.Ticker { return time.NewTicker(time.Hour) },
		submitter: fake,
	})

	b.IncCounter("tableprof.rows_scanned", 8)
	if err := b.Close(context.Background()); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if n := len(fake.submitted()); n != 1 {
		t.Fatalf("Close() submitted %d payloads, want 1", n)
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"single", "env:prod", 1},
		{"multiple with spaces", " env:prod , team:data ", 2},
		{"trailing comma", "env:prod,", 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseTagsCSV(tt.in); len(got) != tt.want {
				t.Fatalf("ParseTagsCSV(%q) = %v, want %d tags", tt.in, got, tt.want)
			}
		})
	}
}
