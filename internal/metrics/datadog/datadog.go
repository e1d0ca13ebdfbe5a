// Package datadog implements a Datadog backend for the internal/metrics
// interface.
//
// Profiling runs are usually short-lived commands, but the backend also has
// to behave for long scheduled runs over large tables. Submitting once at
// process exit would turn a long run into a single spike on a dashboard, so
// the backend:
//
//   - buffers metrics in memory (fast, lock-protected)
//   - periodically flushes on a ticker (default once per minute)
//   - flushes one final time on Close
//
// Concurrency model:
//   - partition workers may call IncCounter/ObserveHistogram at any time
//   - Flush snapshots and resets buffers under a mutex, then submits
//     out-of-lock
//   - the flush loop calls Flush periodically; Close stops the loop
//
// Buffers are reset even when submission fails: losing a window of metrics
// is preferable to blocking the profiler on the metrics path.
package datadog

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"tableprof/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options configures the backend.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "tableprof".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// Non-positive defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets these; tests use
	// them to avoid real network submission and nondeterministic clocks.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK the backend
// needs. The SDK exposes a concrete *datadogV2.MetricsApi; depending on this
// interface instead lets tests inject a fake.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// key identifies one buffered series: metric name plus its sorted tag set.
type key struct {
	name string
	tags string
}

func makeKey(name string, tags []string) key {
	if len(tags) == 0 {
		return key{name: name}
	}
	cp := append([]string(nil), tags...)
	sort.Strings(cp)
	return key{name: name, tags: strings.Join(cp, ",")}
}

func (k key) tagList() []string {
	if k.tags == "" {
		return nil
	}
	return strings.Split(k.tags, ",")
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api        metricsSubmitter
	ddCtx      context.Context
	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counters map[key]float64
	samples  map[key][]float64
}

var _ metrics.Backend = (*Backend)(nil)

// New constructs a Datadog backend using the official client. Credentials
// come from the environment (DD_API_KEY etc.), as the SDK's default context
// arranges. Network errors surface from Flush, not from construction.
func New(parent context.Context, opts Options) *Backend {
	job := opts.JobName
	if job == "" {
		job = "tableprof"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := append([]string{"job:" + job}, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	tickerFn := opts.newTicker
	if tickerFn == nil {
		tickerFn = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ddCtx:      dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  tickerFn,
		counters:   make(map[key]float64),
		samples:    make(map[key][]float64),
	}

	go b.loop()
	return b
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush(context.Background())
		case <-b.stopCh:
			return
		}
	}
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, tags ...string) {
	if delta <= 0 {
		return
	}
	k := makeKey(name, tags)

	b.mu.Lock()
	b.counters[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, tags ...string) {
	if value < 0 {
		return
	}
	k := makeKey(name, tags)

	b.mu.Lock()
	b.samples[k] = append(b.samples[k], value)
	b.mu.Unlock()
}

// snapshotAndReset detaches the buffered state so submission can happen
// out-of-lock.
func (b *Backend) snapshotAndReset() (map[key]float64, map[key][]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	counters, samples := b.counters, b.samples
	b.counters = make(map[key]float64)
	b.samples = make(map[key][]float64)
	return counters, samples
}

// Flush submits buffered metrics and resets the buffers. Returns nil when
// there is nothing to submit.
func (b *Backend) Flush(ctx context.Context) error {
	counters, samples := b.snapshotAndReset()
	if len(counters) == 0 && len(samples) == 0 {
		return nil
	}

	series := b.buildSeries(counters, samples, b.now().Unix())

	_, _, err := b.api.SubmitMetrics(b.ddCtx, datadogV2.MetricPayload{Series: series}, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// Close stops the flush loop and performs one final Flush. Call once.
func (b *Backend) Close(ctx context.Context) error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush(ctx)
}

// buildSeries converts a snapshot into Datadog series at a fixed timestamp.
// It is pure (no locks, no network, no clocks), which is what the unit tests
// exercise: metric naming and tagging are an operational contract.
func (b *Backend) buildSeries(counters map[key]float64, samples map[key][]float64, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(counters)+6*len(samples))

	for k, v := range counters {
		if v == 0 {
			continue
		}
		series = append(series, metricSeries(k.name, datadogV2.METRICINTAKETYPE_COUNT, v, b.tagsFor(k), nowUnix))
	}

	for k, vals := range samples {
		if len(vals) == 0 {
			continue
		}
		cp := append([]float64(nil), vals...)
		sort.Float64s(cp)

		tags := b.tagsFor(k)
		for _, pct := range []struct {
			suffix string
			p      float64
		}{
			{".p50", 0.50}, {".p90", 0.90}, {".p95", 0.95}, {".p99", 0.99},
		} {
			series = append(series, metricSeries(k.name+pct.suffix, datadogV2.METRICINTAKETYPE_GAUGE, percentileNearestRank(cp, pct.p), tags, nowUnix))
		}
		series = append(series, metricSeries(k.name+".max", datadogV2.METRICINTAKETYPE_GAUGE, cp[len(cp)-1], tags, nowUnix))
		series = append(series, metricSeries(k.name+".samples", datadogV2.METRICINTAKETYPE_GAUGE, float64(len(cp)), tags, nowUnix))
	}

	return series
}

func (b *Backend) tagsFor(k key) []string {
	out := make([]string, 0, len(b.baseTags)+4)
	out = append(out, b.baseTags...)
	out = append(out, k.tagList()...)
	return out
}

func metricSeries(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

// percentileNearestRank returns the nearest-rank percentile: the value at
// rank ceil(p*n), 1-based. For p50 over 1..100 that is the 50th sample.
func percentileNearestRank(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
