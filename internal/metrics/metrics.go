// Package metrics defines the minimal run-metrics interface the profiling
// engine emits to. The engine depends only on Backend; concrete backends
// (Datadog) live in subpackages so no vendor-specific code leaks into the
// core.
package metrics

import "context"

// Backend receives run metrics. Implementations must be safe for concurrent
// use; the engine may emit from multiple workers.
type Backend interface {
	// IncCounter adds value to a monotonically increasing counter.
	IncCounter(name string, value float64, tags ...string)

	// ObserveHistogram records one observation of a distribution (e.g. run
	// duration in milliseconds).
	ObserveHistogram(name string, value float64, tags ...string)

	// Flush submits buffered metrics.
	Flush(ctx context.Context) error

	// Close flushes a final time and releases resources.
	Close(ctx context.Context) error
}

// Nop is the default backend: it discards everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, ...string)       {}
func (Nop) ObserveHistogram(string, float64, ...string) {}
func (Nop) Flush(context.Context) error                 { return nil }
func (Nop) Close(context.Context) error                 { return nil }
