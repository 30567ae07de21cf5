// Package metrics aggregates probe results into consistent run snapshots.
//
// The central [Counters] type is shared by all workers of a run. Every probe
// result lands as one compound update under a single lock, so no reader can
// ever observe a completed count that disagrees with succeeded plus failed:
//
//	counters := metrics.NewCounters(total)
//	counters.RecordSuccess(latency)
//	counters.RecordFailure(latency)
//
//	s := counters.Snapshot()
//	// s.Completed == s.Succeeded + s.Failed always holds
//
// Latencies feed an HDR histogram, so [Snapshot] carries P50/P90/P99
// percentiles alongside min, max and mean without storing every sample.
//
// A [Snapshot] is an immutable value: once taken it never changes, and the
// terminal snapshot of a run is simply the last one with Terminal set.
package metrics
