// Package telemetry provides the run counters that form the core's
// observability surface, plus optional OpenTelemetry OTLP export.
package telemetry

import (
	"sync/atomic"
	"time"
)

// Counters collects running totals for one processing run. All methods
// are safe for concurrent use; workers update shared counters through
// atomic adds.
type Counters struct {
	LinesProcessed     int64
	ParseErrors        int64
	RouteErrors        int64
	EventsProcessed    int64
	EncountersProduced int64
	AmountMismatches   int64
	DedupedSwings      int64
	BoundaryFailures   int64

	startTime time.Time
}

// NewCounters creates a counter set with the clock started.
func NewCounters() *Counters {
	return &Counters{startTime: time.Now()}
}

// AddLinesProcessed increments the processed-line counter.
func (c *Counters) AddLinesProcessed(n int64) {
	atomic.AddInt64(&c.LinesProcessed, n)
}

// AddParseErrors increments the tokenizer failure counter.
func (c *Counters) AddParseErrors(n int64) {
	atomic.AddInt64(&c.ParseErrors, n)
}

// AddRouteErrors increments the unroutable-event counter.
func (c *Counters) AddRouteErrors(n int64) {
	atomic.AddInt64(&c.RouteErrors, n)
}

// AddEventsProcessed increments the routed-event counter.
func (c *Counters) AddEventsProcessed(n int64) {
	atomic.AddInt64(&c.EventsProcessed, n)
}

// AddEncountersProduced increments the finalized-encounter counter.
func (c *Counters) AddEncountersProduced(n int64) {
	atomic.AddInt64(&c.EncountersProduced, n)
}

// AddAmountMismatches increments the suffix-offset consistency counter.
func (c *Counters) AddAmountMismatches(n int64) {
	atomic.AddInt64(&c.AmountMismatches, n)
}

// AddDedupedSwings increments the suppressed duplicate swing counter.
func (c *Counters) AddDedupedSwings(n int64) {
	atomic.AddInt64(&c.DedupedSwings, n)
}

// AddBoundaryFailures increments the isolated worker failure counter.
func (c *Counters) AddBoundaryFailures(n int64) {
	atomic.AddInt64(&c.BoundaryFailures, n)
}

// Snapshot returns a point-in-time copy of the counters.
func (c *Counters) Snapshot() Snapshot {
	elapsed := time.Since(c.startTime)
	lines := atomic.LoadInt64(&c.LinesProcessed)

	s := Snapshot{
		LinesProcessed:     lines,
		ParseErrors:        atomic.LoadInt64(&c.ParseErrors),
		RouteErrors:        atomic.LoadInt64(&c.RouteErrors),
		EventsProcessed:    atomic.LoadInt64(&c.EventsProcessed),
		EncountersProduced: atomic.LoadInt64(&c.EncountersProduced),
		AmountMismatches:   atomic.LoadInt64(&c.AmountMismatches),
		DedupedSwings:      atomic.LoadInt64(&c.DedupedSwings),
		BoundaryFailures:   atomic.LoadInt64(&c.BoundaryFailures),
		Elapsed:            elapsed,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		s.LinesPerSecond = float64(lines) / secs
	}
	return s
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	LinesProcessed     int64         `json:"lines_processed"`
	ParseErrors        int64         `json:"parse_errors"`
	RouteErrors        int64         `json:"route_errors"`
	EventsProcessed    int64         `json:"events_processed"`
	EncountersProduced int64         `json:"encounters_produced"`
	AmountMismatches   int64         `json:"amount_mismatches"`
	DedupedSwings      int64         `json:"deduped_swings"`
	BoundaryFailures   int64         `json:"boundary_failures"`
	Elapsed            time.Duration `json:"elapsed_ns"`
	LinesPerSecond     float64       `json:"lines_per_second"`
}

// Reset zeroes all counters and restarts the clock.
func (c *Counters) Reset() {
	atomic.StoreInt64(&c.LinesProcessed, 0)
	atomic.StoreInt64(&c.ParseErrors, 0)
	atomic.StoreInt64(&c.RouteErrors, 0)
	atomic.StoreInt64(&c.EventsProcessed, 0)
	atomic.StoreInt64(&c.EncountersProduced, 0)
	atomic.StoreInt64(&c.AmountMismatches, 0)
	atomic.StoreInt64(&c.DedupedSwings, 0)
	atomic.StoreInt64(&c.BoundaryFailures, 0)
	c.startTime = time.Now()
}
