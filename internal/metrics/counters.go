package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/netprobe/internal/probe"
)

// Counters is the shared aggregate of a run. The completed count and its
// success/failure half move under one mutex as a single logical unit, so no
// reader ever observes completed != succeeded+failed.
type Counters struct {
	mu         sync.Mutex
	total      int64
	completed  int64
	succeeded  int64
	failed     int64
	hist       *hdrhistogram.Histogram
	sumLatency time.Duration
	minLatency time.Duration
	maxLatency time.Duration
	start      time.Time
}

// NewCounters creates a fresh aggregate for a run of the given fixed size.
func NewCounters(total int64) *Counters {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Counters{
		total: total,
		hist:  h,
		start: time.Now(),
	}
}

// RecordSuccess registers one succeeded probe and its latency.
func (c *Counters) RecordSuccess(latency time.Duration) {
	c.record(latency, true)
}

// RecordFailure registers one failed probe and its latency.
func (c *Counters) RecordFailure(latency time.Duration) {
	c.record(latency, false)
}

func (c *Counters) record(latency time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed++
	if ok {
		c.succeeded++
	} else {
		c.failed++
	}

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency
	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}
}

// Snapshot returns a consistent point-in-time copy of the aggregate.
func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.start)
	s := Snapshot{
		Total:      c.total,
		Completed:  c.completed,
		Succeeded:  c.succeeded,
		Failed:     c.failed,
		MinLatency: c.minLatency,
		MaxLatency: c.maxLatency,
		Elapsed:    elapsed,
	}

	if c.completed > 0 {
		s.MeanLatency = time.Duration(int64(c.sumLatency) / c.completed)
	}
	if c.hist.TotalCount() > 0 {
		s.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		s.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		s.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}
	if elapsed > 0 && c.completed > 0 {
		s.RequestsPerSec = float64(c.completed) / elapsed.Seconds()
	}
	return s
}

// Snapshot is an immutable view of run state at one instant.
type Snapshot struct {
	RunID     string `json:"run_id,omitempty"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Succeeded int64  `json:"succeeded"`
	Failed    int64  `json:"failed"`

	Terminal  bool `json:"terminal"`
	Cancelled bool `json:"cancelled,omitempty"`

	// Outcome carries the single classified result of a one-probe run.
	Outcome *probe.Outcome `json:"-"`
	// Err is a run-level failure raised before any worker started.
	Err error `json:"-"`

	MinLatency     time.Duration `json:"-"`
	MaxLatency     time.Duration `json:"-"`
	MeanLatency    time.Duration `json:"-"`
	P50Latency     time.Duration `json:"-"`
	P90Latency     time.Duration `json:"-"`
	P99Latency     time.Duration `json:"-"`
	Elapsed        time.Duration `json:"-"`
	RequestsPerSec float64       `json:"requests_per_sec"`
}

// MillisecondFields returns JSON-friendly latency values for reports.
func (s Snapshot) MillisecondFields() map[string]float64 {
	return map[string]float64{
		"min_latency_ms":  float64(s.MinLatency) / float64(time.Millisecond),
		"max_latency_ms":  float64(s.MaxLatency) / float64(time.Millisecond),
		"mean_latency_ms": float64(s.MeanLatency) / float64(time.Millisecond),
		"p50_latency_ms":  float64(s.P50Latency) / float64(time.Millisecond),
		"p90_latency_ms":  float64(s.P90Latency) / float64(time.Millisecond),
		"p99_latency_ms":  float64(s.P99Latency) / float64(time.Millisecond),
		"duration_ms":     float64(s.Elapsed) / float64(time.Millisecond),
	}
}
