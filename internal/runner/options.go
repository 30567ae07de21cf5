package runner

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/netprobe/internal/logging"
	"github.com/torosent/netprobe/internal/metrics"
	"github.com/torosent/netprobe/internal/probe"
)

const defaultProgressInterval = 100 * time.Millisecond

// Options configure the Dispatcher.
type Options struct {
	Workers     int           // concurrent workers, each running Repetitions iterations
	Repetitions int           // sequential probes per worker
	Delay       time.Duration // pause after each probe within a worker

	Probe probe.Probe // request executor (required)

	// OnSnapshot receives intermediate progress snapshots. Optional.
	OnSnapshot func(metrics.Snapshot)
	// Interval paces intermediate snapshot emission.
	Interval time.Duration

	RatePerSecond  int                         // global pacing across workers (0 means unlimited)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests

	Logger logging.Logger
}

// ValidationError reports invalid settings rejected before any worker starts.
type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "invalid run settings"
	}
	return fmt.Sprintf("invalid run settings: %s", strings.Join(e.issues, "; "))
}

// Issues returns the individual validation failures.
func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (o Options) validate() error {
	var issues []string
	if o.Workers < 1 {
		issues = append(issues, fmt.Sprintf("workers must be >= 1, got %d", o.Workers))
	}
	if o.Repetitions < 1 {
		issues = append(issues, fmt.Sprintf("repetitions must be >= 1, got %d", o.Repetitions))
	}
	if o.Delay < 0 {
		issues = append(issues, fmt.Sprintf("delay must be >= 0, got %s", o.Delay))
	}
	if o.RatePerSecond < 0 {
		issues = append(issues, fmt.Sprintf("rate must be >= 0, got %d", o.RatePerSecond))
	}
	if o.Probe == nil {
		issues = append(issues, "probe is required")
	}
	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func (o *Options) normalize() {
	if o.Interval <= 0 {
		o.Interval = defaultProgressInterval
	}
	if o.Logger == nil {
		o.Logger = logging.NewNoopLogger()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}
