// Package runner fans a probe out across concurrent workers and reports
// progress while the run is in flight.
//
// # Basic Usage
//
// Create a dispatcher with options and a probe implementation:
//
//	d, err := runner.New(runner.Options{
//		Workers:     4,
//		Repetitions: 25,
//		Probe:       myProbe,
//		OnSnapshot:  func(s metrics.Snapshot) { fmt.Println(s.Completed) },
//	})
//	final := d.Run(ctx)
//
// Each worker executes its repetitions sequentially; the total number of
// probes is Workers times Repetitions. While workers run, OnSnapshot receives
// periodic progress snapshots; the last snapshot delivered is always the
// terminal one, marked by Snapshot.Terminal.
//
// # Pacing
//
// Two knobs shape the run. Delay pauses a worker after each probe, so pacing
// is per worker. RatePerSecond bounds probe starts across all workers using a
// token-bucket limiter; zero means unlimited.
//
// # Cancellation
//
// Run honors its context: workers stop picking up new repetitions once the
// context is cancelled, in-flight probes finish or time out on their own, and
// the terminal snapshot reports Cancelled along with whatever completed.
package runner
