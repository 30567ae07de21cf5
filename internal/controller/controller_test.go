package controller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/netprobe/internal/metrics"
	"github.com/torosent/netprobe/internal/probe"
	"github.com/torosent/netprobe/internal/runner"
)

type stubProbe struct {
	calls   int64
	latency time.Duration
	fail    bool
}

func (p *stubProbe) Execute(ctx context.Context) probe.Outcome {
	atomic.AddInt64(&p.calls, 1)
	if p.latency > 0 {
		select {
		case <-time.After(p.latency):
		case <-ctx.Done():
		}
	}
	if p.fail {
		return probe.Outcome{Kind: probe.FailConnectionRefused, Message: "connection refused", Latency: time.Millisecond}
	}
	return probe.Outcome{OK: true, StatusCode: 200, Latency: time.Millisecond}
}

func stubFactory(p probe.Probe) ProbeFactory {
	return func(probe.Target, probe.Options) (probe.Probe, error) { return p, nil }
}

func httpTarget() probe.Target {
	return probe.NewHTTPTarget("http://example.test/health", "GET", nil, "")
}

func drain(t *testing.T, ch <-chan metrics.Snapshot) metrics.Snapshot {
	t.Helper()
	var final metrics.Snapshot
	sawTerminal := false
	for s := range ch {
		if sawTerminal {
			t.Fatal("snapshot delivered after the terminal one")
		}
		if s.Terminal {
			final = s
			sawTerminal = true
		}
	}
	if !sawTerminal {
		t.Fatal("channel closed without a terminal snapshot")
	}
	return final
}

func TestStartRunsToCompletion(t *testing.T) {
	p := &stubProbe{}
	ctrl := New(nil).WithProbeFactory(stubFactory(p))

	ch, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: true, Workers: 3, Repetitions: 4, Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	final := drain(t, ch)
	if final.Completed != 12 || final.Succeeded != 12 {
		t.Fatalf("got %+v", final)
	}
	if final.RunID == "" {
		t.Fatal("terminal snapshot must carry the run id")
	}
	if got := atomic.LoadInt64(&p.calls); got != 12 {
		t.Fatalf("probe executed %d times, want 12", got)
	}
	if st := ctrl.State(); st != StateSucceeded {
		t.Fatalf("got state %q", st)
	}
	latest, ok := ctrl.Latest()
	if !ok || latest.RunID != final.RunID {
		t.Fatalf("latest snapshot not recorded: %+v ok=%v", latest, ok)
	}
}

func TestStartAllFailuresStillSucceededState(t *testing.T) {
	ctrl := New(nil).WithProbeFactory(stubFactory(&stubProbe{fail: true}))

	ch, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: true, Workers: 2, Repetitions: 3,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	final := drain(t, ch)
	if final.Failed != 6 {
		t.Fatalf("got %+v", final)
	}
	// Probe failures are data, not a run failure.
	if st := ctrl.State(); st != StateSucceeded {
		t.Fatalf("got state %q", st)
	}
}

func TestStartDisabledLoadRunsSingleProbe(t *testing.T) {
	p := &stubProbe{}
	ctrl := New(nil).WithProbeFactory(stubFactory(p))

	ch, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: false, Workers: 50, Repetitions: 50,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	final := drain(t, ch)
	if final.Total != 1 || final.Completed != 1 {
		t.Fatalf("disabled load must collapse to one probe: %+v", final)
	}
	if final.Outcome == nil || !final.Outcome.Accepted() {
		t.Fatalf("single-probe terminal snapshot must carry the outcome: %+v", final)
	}
	if got := atomic.LoadInt64(&p.calls); got != 1 {
		t.Fatalf("probe executed %d times, want 1", got)
	}
}

func TestStartRejectsInvalidSettings(t *testing.T) {
	ctrl := New(nil).WithProbeFactory(stubFactory(&stubProbe{}))

	_, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: true, Workers: 0, Repetitions: 5,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr runner.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("got %T: %v", err, err)
	}
	if st := ctrl.State(); st != StateIdle {
		t.Fatalf("rejected start must leave state idle, got %q", st)
	}
}

func TestStartFactoryErrorYieldsTerminalSnapshot(t *testing.T) {
	boom := errors.New("no probe for target")
	ctrl := New(nil).WithProbeFactory(func(probe.Target, probe.Options) (probe.Probe, error) {
		return nil, boom
	})

	ch, err := ctrl.Start(context.Background(), httpTarget(), Settings{Enabled: true, Workers: 1, Repetitions: 1})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	final := drain(t, ch)
	if !errors.Is(final.Err, boom) {
		t.Fatalf("got %+v", final)
	}
	if final.Completed != 0 {
		t.Fatalf("no workers must have run: %+v", final)
	}
	if st := ctrl.State(); st != StateFailed {
		t.Fatalf("got state %q", st)
	}
}

func TestStopCancelsActiveRun(t *testing.T) {
	p := &stubProbe{latency: 30 * time.Millisecond}
	ctrl := New(nil).WithProbeFactory(stubFactory(p))

	ch, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: true, Workers: 2, Repetitions: 100,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st := ctrl.State(); st != StateRunning {
		t.Fatalf("got state %q", st)
	}

	finalCh := make(chan metrics.Snapshot, 1)
	go func() { finalCh <- drain(t, ch) }()

	time.Sleep(50 * time.Millisecond)
	ctrl.Stop()

	final := <-finalCh
	if !final.Cancelled {
		t.Fatalf("terminal snapshot must be marked cancelled: %+v", final)
	}
	if final.Completed >= final.Total {
		t.Fatalf("cancellation should cut the run short: %+v", final)
	}
	if st := ctrl.State(); st != StateCancelled {
		t.Fatalf("got state %q", st)
	}
}

func TestStartSupersedesActiveRun(t *testing.T) {
	slow := &stubProbe{latency: 30 * time.Millisecond}
	ctrl := New(nil).WithProbeFactory(stubFactory(slow))

	first, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: true, Workers: 2, Repetitions: 100,
	})
	if err != nil {
		t.Fatalf("start first: %v", err)
	}
	firstFinal := make(chan metrics.Snapshot, 1)
	go func() { firstFinal <- drain(t, first) }()

	time.Sleep(50 * time.Millisecond)

	fast := &stubProbe{}
	ctrl.WithProbeFactory(stubFactory(fast))
	second, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: true, Workers: 1, Repetitions: 3,
	})
	if err != nil {
		t.Fatalf("start second: %v", err)
	}

	// The superseded run still ends with a cancelled terminal snapshot.
	old := <-firstFinal
	if !old.Cancelled {
		t.Fatalf("superseded run must report cancellation: %+v", old)
	}

	final := drain(t, second)
	if final.Cancelled || final.Completed != 3 {
		t.Fatalf("second run corrupted: %+v", final)
	}
	// The old run finishing must not clobber the successor's result.
	latest, ok := ctrl.Latest()
	if !ok || latest.RunID != final.RunID {
		t.Fatalf("latest belongs to the wrong run: %+v", latest)
	}
	if st := ctrl.State(); st != StateSucceeded {
		t.Fatalf("got state %q", st)
	}
}

func TestStartFactoryErrorSupersedesActiveRun(t *testing.T) {
	slow := &stubProbe{latency: 30 * time.Millisecond}
	ctrl := New(nil).WithProbeFactory(stubFactory(slow))

	first, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: true, Workers: 2, Repetitions: 200,
	})
	if err != nil {
		t.Fatalf("start first: %v", err)
	}
	firstFinal := make(chan metrics.Snapshot, 1)
	go func() { firstFinal <- drain(t, first) }()

	time.Sleep(50 * time.Millisecond)

	boom := errors.New("no probe for target")
	ctrl.WithProbeFactory(func(probe.Target, probe.Options) (probe.Probe, error) {
		return nil, boom
	})
	second, err := ctrl.Start(context.Background(), httpTarget(), Settings{
		Enabled: true, Workers: 1, Repetitions: 1,
	})
	if err != nil {
		t.Fatalf("start second: %v", err)
	}

	final := drain(t, second)
	if !errors.Is(final.Err, boom) {
		t.Fatalf("got %+v", final)
	}
	if st := ctrl.State(); st != StateFailed {
		t.Fatalf("got state %q", st)
	}

	// The active run must have been cancelled, not orphaned: its channel
	// still terminates promptly with a cancelled snapshot.
	select {
	case old := <-firstFinal:
		if !old.Cancelled {
			t.Fatalf("superseded run must report cancellation: %+v", old)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("superseded run never terminated after the failed Start")
	}

	// The old run finishing must not overwrite the recorded failure.
	latest, ok := ctrl.Latest()
	if !ok || !errors.Is(latest.Err, boom) {
		t.Fatalf("latest belongs to the wrong run: %+v", latest)
	}
	if st := ctrl.State(); st != StateFailed {
		t.Fatalf("old run clobbered state: %q", st)
	}

	// Stop must be a no-op now, not a hang on a dropped handle.
	done := make(chan struct{})
	go func() {
		ctrl.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() hung after a failed Start")
	}
}

func TestCheckConnectivity(t *testing.T) {
	ctrl := New(nil).WithProbeFactory(stubFactory(&stubProbe{}))
	outcome := ctrl.CheckConnectivity(context.Background(), httpTarget())
	if !outcome.Accepted() {
		t.Fatalf("got %+v", outcome)
	}
}

func TestCheckConnectivityFactoryError(t *testing.T) {
	ctrl := New(nil).WithProbeFactory(func(probe.Target, probe.Options) (probe.Probe, error) {
		return nil, errors.New("lookup host.invalid: no such host")
	})
	outcome := ctrl.CheckConnectivity(context.Background(), httpTarget())
	if outcome.OK {
		t.Fatal("expected failure")
	}
	if outcome.Kind != probe.FailHostUnresolvable {
		t.Fatalf("got kind %q", outcome.Kind)
	}
}

func TestNewControllerStartsIdle(t *testing.T) {
	ctrl := New(nil)
	if st := ctrl.State(); st != StateIdle {
		t.Fatalf("got state %q", st)
	}
	if _, ok := ctrl.Latest(); ok {
		t.Fatal("fresh controller must have no snapshot")
	}
}
