package output

import (
	"sync"
	"testing"
	"time"

	"github.com/torosent/netprobe/internal/metrics"
)

func TestProgressReporterDeliversSnapshots(t *testing.T) {
	var mu sync.Mutex
	var seen []metrics.Snapshot
	reporter := NewProgressReporter(func(s metrics.Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	reporter.Start()
	reporter.Publish(metrics.Snapshot{Completed: 1, Total: 3})
	time.Sleep(20 * time.Millisecond)
	reporter.Publish(metrics.Snapshot{Completed: 3, Total: 3, Terminal: true})
	reporter.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) == 0 {
		t.Fatal("no snapshots delivered")
	}
	last := seen[len(seen)-1]
	if !last.Terminal {
		t.Fatalf("last delivery must be the terminal snapshot, got %+v", last)
	}
}

func TestProgressReporterCoalescesBurst(t *testing.T) {
	slow := make(chan struct{})
	var mu sync.Mutex
	var seen []metrics.Snapshot
	reporter := NewProgressReporter(func(s metrics.Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
		<-slow
	})

	reporter.Start()
	// First publish occupies the subscriber; the rest coalesce.
	for i := int64(1); i <= 100; i++ {
		reporter.Publish(metrics.Snapshot{Completed: i, Total: 100})
	}
	close(slow)
	reporter.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) >= 100 {
		t.Fatalf("burst not coalesced: %d deliveries", len(seen))
	}
	last := seen[len(seen)-1]
	if last.Completed != 100 {
		t.Fatalf("latest snapshot lost, last delivery had completed=%d", last.Completed)
	}
}

func TestProgressReporterDeliveryOrderNonDecreasing(t *testing.T) {
	var mu sync.Mutex
	var seen []int64
	reporter := NewProgressReporter(func(s metrics.Snapshot) {
		mu.Lock()
		seen = append(seen, s.Completed)
		mu.Unlock()
	})

	reporter.Start()
	for i := int64(1); i <= 500; i++ {
		reporter.Publish(metrics.Snapshot{Completed: i, Total: 500})
	}
	reporter.Stop()

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("completed went backwards: %d after %d", seen[i], seen[i-1])
		}
	}
}

func TestProgressReporterStopWithoutStart(t *testing.T) {
	reporter := NewProgressReporter(nil)
	reporter.Stop() // must not panic or hang
}

func TestProgressReporterPublishNeverBlocks(t *testing.T) {
	// No subscriber running at all: Publish must still return immediately.
	reporter := NewProgressReporter(func(metrics.Snapshot) {})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			reporter.Publish(metrics.Snapshot{Completed: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked without a running subscriber")
	}
}

func TestProgressReporterStartIdempotent(t *testing.T) {
	var mu sync.Mutex
	count := 0
	reporter := NewProgressReporter(func(metrics.Snapshot) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	reporter.Start()
	reporter.Start()
	reporter.Publish(metrics.Snapshot{Completed: 1})
	reporter.Stop()

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected a single delivery, got %d", count)
	}
}
