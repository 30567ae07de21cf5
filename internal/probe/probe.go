// Package probe executes single bounded network operations against a target
// and classifies the result.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/torosent/netprobe/internal/logging"
)

const (
	// snippetByteLimit caps how much of a response is retained per probe.
	snippetByteLimit = 4096

	defaultTimeout        = 10 * time.Second
	defaultConnectTimeout = 5 * time.Second
)

// Probe executes exactly one unit of work within a bounded duration.
// Implementations hold no state shared between invocations; each call owns
// its own connection and releases it on every exit path.
type Probe interface {
	Execute(ctx context.Context) Outcome
}

// Options configure probe construction.
type Options struct {
	Timeout        time.Duration // overall bound per probe
	ConnectTimeout time.Duration // socket-level bound, never above Timeout
	Logger         logging.Logger
}

func (o *Options) normalize() {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.ConnectTimeout > o.Timeout {
		o.ConnectTimeout = o.Timeout
	}
	if o.Logger == nil {
		o.Logger = logging.NewNoopLogger()
	}
}

// New builds the probe implementation matching the target kind.
func New(target Target, opts Options) (Probe, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	opts.normalize()

	switch target.Kind {
	case KindHTTP:
		return newHTTPProbe(target, opts), nil
	case KindTCP:
		return newTCPProbe(target, opts), nil
	case KindWebSocket:
		return newWebSocketProbe(target, opts), nil
	default:
		return nil, fmt.Errorf("unknown target kind %q", target.Kind)
	}
}

// loggingProbe wraps a Probe to log each failed outcome.
type loggingProbe struct {
	inner  Probe
	logger logging.Logger
}

// WithLogging wraps a Probe so failures are logged as they happen.
func WithLogging(p Probe, logger logging.Logger) Probe {
	if logger == nil {
		return p
	}
	return &loggingProbe{inner: p, logger: logger}
}

func (l *loggingProbe) Execute(ctx context.Context) Outcome {
	out := l.inner.Execute(ctx)
	if !out.OK {
		l.logger.Error("probe failed", "kind", string(out.Kind), "message", out.Message)
	} else if !out.Accepted() {
		l.logger.Error("probe rejected", "status", out.StatusCode)
	}
	return out
}
