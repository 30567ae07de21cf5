// Package controller exposes the caller-facing surface of the engine: a
// single-probe connectivity check and a snapshot-streaming load run with a
// per-run state machine.
package controller

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/torosent/netprobe/internal/logging"
	"github.com/torosent/netprobe/internal/metrics"
	"github.com/torosent/netprobe/internal/output"
	"github.com/torosent/netprobe/internal/probe"
	"github.com/torosent/netprobe/internal/runner"
)

// State is the lifecycle of a run as the caller observes it.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

const (
	checkTimeout        = 10 * time.Second
	checkConnectTimeout = 5 * time.Second
)

// Settings configure one run. Immutable once the run starts.
type Settings struct {
	Enabled     bool // false is equivalent to Workers=1, Repetitions=1
	Workers     int
	Repetitions int
	Delay       time.Duration

	Timeout        time.Duration
	ConnectTimeout time.Duration
	RatePerSecond  int
	Interval       time.Duration
}

func (s Settings) effective() (workers, repetitions int) {
	if !s.Enabled {
		return 1, 1
	}
	return s.Workers, s.Repetitions
}

// ProbeFactory builds a probe for a target; injectable for tests.
type ProbeFactory func(target probe.Target, opts probe.Options) (probe.Probe, error)

type runHandle struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// RunController validates settings, starts runs, exposes cancellation and
// surfaces the latest snapshot. A new Start while a run is active supersedes
// it: the old run's context is cancelled and its workers drain on their own.
type RunController struct {
	mu      sync.Mutex
	state   State
	latest  *metrics.Snapshot
	current *runHandle

	factory ProbeFactory
	logger  logging.Logger
	entropy *ulid.MonotonicEntropy
}

// New creates an idle controller.
func New(logger logging.Logger) *RunController {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &RunController{
		state:   StateIdle,
		factory: probe.New,
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
}

// WithProbeFactory overrides probe construction, for tests.
func (c *RunController) WithProbeFactory(f ProbeFactory) *RunController {
	c.factory = f
	return c
}

// CheckConnectivity performs one probe against the target with the fixed
// connectivity-check timeouts and returns its classified outcome.
func (c *RunController) CheckConnectivity(ctx context.Context, target probe.Target) probe.Outcome {
	p, err := c.factory(target, probe.Options{
		Timeout:        checkTimeout,
		ConnectTimeout: checkConnectTimeout,
		Logger:         c.logger,
	})
	if err != nil {
		kind, msg := probe.Classify(err)
		return probe.Outcome{Kind: kind, Message: msg}
	}
	return p.Execute(ctx)
}

// Start launches a run and returns a channel of snapshots: zero or more
// intermediate ones followed by exactly one terminal snapshot, after which the
// channel is closed. The caller must drain the channel. Invalid settings are
// rejected with an error before anything starts; a malformed target instead
// produces a single terminal snapshot carrying the run-level error.
func (c *RunController) Start(ctx context.Context, target probe.Target, settings Settings) (<-chan metrics.Snapshot, error) {
	workers, repetitions := settings.effective()

	c.mu.Lock()
	runID := ulid.MustNew(ulid.Timestamp(time.Now()), c.entropy).String()
	c.mu.Unlock()

	logger := c.logger.With("run_id", runID)
	ch := make(chan metrics.Snapshot, 1)

	p, err := c.factory(target, probe.Options{
		Timeout:        settings.Timeout,
		ConnectTimeout: settings.ConnectTimeout,
		Logger:         logger,
	})
	if err != nil {
		// Run-level failure before any worker is scheduled: one terminal
		// snapshot with zero workers spawned. This Start still supersedes:
		// the active run, if any, is cancelled before the failure is
		// recorded, so it can never be orphaned under a stale handle.
		final := metrics.Snapshot{RunID: runID, Terminal: true, Err: err}
		c.mu.Lock()
		if prev := c.current; prev != nil {
			prev.cancel()
			c.current = nil
		}
		c.mu.Unlock()
		c.finish(nil, final)
		ch <- final
		close(ch)
		return ch, nil
	}

	reporter := output.NewProgressReporter(func(s metrics.Snapshot) {
		ch <- s
	})

	dispatcher, err := runner.New(runner.Options{
		Workers:       workers,
		Repetitions:   repetitions,
		Delay:         settings.Delay,
		Probe:         p,
		Interval:      settings.Interval,
		RatePerSecond: settings.RatePerSecond,
		Logger:        logger,
		OnSnapshot: func(s metrics.Snapshot) {
			s.RunID = runID
			reporter.Publish(s)
		},
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := &runHandle{id: runID, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if prev := c.current; prev != nil {
		// Supersede: stop scheduling new iterations on the old run. Its
		// in-flight probes drain on their own and its counters stay
		// consistent; its channel still ends with a cancelled terminal
		// snapshot.
		prev.cancel()
	}
	c.current = handle
	c.state = StateRunning
	c.mu.Unlock()

	reporter.Start()

	go func() {
		defer close(handle.done)

		// The dispatcher publishes the terminal snapshot before Run returns;
		// Stop flushes it so it is always the last delivery on ch.
		final := dispatcher.Run(runCtx)
		final.RunID = runID
		cancel()

		reporter.Stop()
		// Record the terminal state before closing: a caller that sees the
		// channel close must observe the final state, not a stale Running.
		c.finish(handle, final)
		close(ch)
	}()

	return ch, nil
}

// finish records the terminal snapshot and state if the handle is still the
// active run (a superseded run must not clobber its successor's state).
func (c *RunController) finish(handle *runHandle, final metrics.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if handle != nil && c.current != handle {
		return
	}
	c.current = nil
	c.latest = &final

	switch {
	case final.Err != nil:
		c.state = StateFailed
	case final.Cancelled:
		c.state = StateCancelled
	default:
		c.state = StateSucceeded
	}
}

// Stop cancels the active run, if any. In-flight probes finish or time out
// normally; the run still delivers its terminal snapshot.
func (c *RunController) Stop() {
	c.mu.Lock()
	handle := c.current
	c.mu.Unlock()

	if handle != nil {
		handle.cancel()
		<-handle.done
	}
}

// State returns the controller's current lifecycle state.
func (c *RunController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Latest returns the most recent terminal snapshot, if any.
func (c *RunController) Latest() (metrics.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return metrics.Snapshot{}, false
	}
	return *c.latest, true
}
