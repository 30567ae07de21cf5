package runner

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/netprobe/internal/metrics"
)

// Dispatcher orchestrates one run: it computes the total work, spawns workers,
// funnels outcomes into shared counters and reports a single terminal snapshot
// once every worker has finished.
type Dispatcher struct {
	opt     Options
	limiter *rate.Limiter
}

// New validates the settings and builds a Dispatcher. Invalid settings are
// rejected here, before any worker could start.
func New(opt Options) (*Dispatcher, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	opt.normalize()
	return &Dispatcher{
		opt:     opt,
		limiter: opt.LimiterFactory(opt.RatePerSecond),
	}, nil
}

// Total returns the fixed amount of work for this run.
func (d *Dispatcher) Total() int64 {
	return int64(d.opt.Workers) * int64(d.opt.Repetitions)
}

// Run executes the whole run and blocks until the terminal snapshot is ready.
// Cancelling ctx stops new iterations promptly; probes already in flight are
// left to finish or time out so no connection is abandoned mid-write.
func (d *Dispatcher) Run(ctx context.Context) metrics.Snapshot {
	total := d.Total()

	// Single-unit runs bypass the worker and ticker machinery entirely.
	if total == 1 {
		return d.runSingle(ctx)
	}

	counters := metrics.NewCounters(total)

	tickerDone := make(chan struct{})
	tickerFinished := make(chan struct{})
	go func() {
		defer close(tickerFinished)
		ticker := time.NewTicker(d.opt.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.emit(counters.Snapshot())
			case <-tickerDone:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(d.opt.Workers)
	for i := 0; i < d.opt.Workers; i++ {
		go func() {
			defer wg.Done()
			d.worker(ctx, counters)
		}()
	}
	wg.Wait()

	// The ticker is always stopped before the terminal snapshot so no
	// intermediate emission can follow it.
	close(tickerDone)
	<-tickerFinished

	final := counters.Snapshot()
	final.Terminal = true
	final.Cancelled = ctx.Err() != nil
	d.emit(final)

	d.opt.Logger.Info("run finished",
		"total", final.Total,
		"completed", final.Completed,
		"succeeded", final.Succeeded,
		"failed", final.Failed,
		"cancelled", final.Cancelled,
	)
	return final
}

// worker executes its repetitions strictly sequentially: iteration i+1 never
// starts before iteration i's outcome is recorded and the delay has elapsed.
func (d *Dispatcher) worker(ctx context.Context, counters *metrics.Counters) {
	for rep := 0; rep < d.opt.Repetitions; rep++ {
		if ctx.Err() != nil {
			return
		}
		if err := d.limiter.Wait(ctx); err != nil {
			return
		}

		out := d.opt.Probe.Execute(ctx)
		if out.Accepted() {
			counters.RecordSuccess(out.Latency)
		} else {
			counters.RecordFailure(out.Latency)
		}

		if d.opt.Delay > 0 && rep < d.opt.Repetitions-1 {
			select {
			case <-time.After(d.opt.Delay):
			case <-ctx.Done():
				return
			}
		}
	}
}

// runSingle performs one direct probe call and classifies it synchronously.
func (d *Dispatcher) runSingle(ctx context.Context) metrics.Snapshot {
	out := d.opt.Probe.Execute(ctx)

	final := metrics.Snapshot{
		Total:      1,
		Completed:  1,
		Terminal:   true,
		Cancelled:  ctx.Err() != nil,
		Outcome:    &out,
		MinLatency: out.Latency,
		MaxLatency: out.Latency,
		Elapsed:    out.Latency,
	}
	if out.Accepted() {
		final.Succeeded = 1
	} else {
		final.Failed = 1
	}
	d.emit(final)
	return final
}

func (d *Dispatcher) emit(s metrics.Snapshot) {
	if d.opt.OnSnapshot != nil {
		d.opt.OnSnapshot(s)
	}
}
