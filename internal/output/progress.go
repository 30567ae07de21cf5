package output

import (
	"sync"
	"sync/atomic"

	"github.com/torosent/netprobe/internal/metrics"
)

// ProgressReporter delivers run snapshots to a single subscriber without ever
// blocking the producer. A slow subscriber only sees the latest pending
// snapshot (coalescing); there is no queue that can grow.
type ProgressReporter struct {
	fn       func(metrics.Snapshot)
	mu       sync.Mutex
	latest   *metrics.Snapshot
	notify   chan struct{}
	done     chan struct{}
	finished chan struct{}
	active   int32
}

// NewProgressReporter creates a reporter delivering to fn on its own goroutine.
func NewProgressReporter(fn func(metrics.Snapshot)) *ProgressReporter {
	if fn == nil {
		fn = func(metrics.Snapshot) {}
	}
	return &ProgressReporter{
		fn:       fn,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start begins delivery in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Publish records a snapshot for delivery, replacing any undelivered one.
// Never blocks.
func (p *ProgressReporter) Publish(s metrics.Snapshot) {
	p.mu.Lock()
	p.latest = &s
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Stop flushes the last pending snapshot and halts delivery. It blocks until
// the subscriber has seen that final snapshot.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.notify:
			p.deliver()
		case <-p.done:
			p.deliver()
			return
		}
	}
}

func (p *ProgressReporter) deliver() {
	p.mu.Lock()
	s := p.latest
	p.latest = nil
	p.mu.Unlock()

	if s != nil {
		p.fn(*s)
	}
}
