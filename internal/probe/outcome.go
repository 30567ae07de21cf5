package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// FailureKind categorizes why a probe failed.
type FailureKind string

const (
	FailTimeout           FailureKind = "timeout"
	FailHostUnresolvable  FailureKind = "host_unresolvable"
	FailConnectionRefused FailureKind = "connection_refused"
	FailProtocol          FailureKind = "protocol_error"
	FailOther             FailureKind = "other"
)

// Outcome is the classified result of a single probe.
//
// OK reports transport-level success: the request was sent and a response (or,
// for raw TCP, a connection) was obtained. An HTTP probe that reaches the
// server but gets a 500 still has OK=true; Accepted distinguishes the two.
type Outcome struct {
	OK         bool
	StatusCode int    // HTTP status when applicable, 0 otherwise
	Marker     string // transport marker for non-HTTP probes, e.g. "sent"
	Snippet    string
	Kind       FailureKind
	Message    string
	Latency    time.Duration
}

// Accepted reports whether the outcome counts as a success for aggregation:
// transport success and, for HTTP, a 2xx status.
func (o Outcome) Accepted() bool {
	if !o.OK {
		return false
	}
	if o.StatusCode != 0 {
		return o.StatusCode >= 200 && o.StatusCode <= 299
	}
	return true
}

// StatusOrMarker renders the outcome's terminal display value.
func (o Outcome) StatusOrMarker() string {
	if !o.OK {
		return string(o.Kind)
	}
	if o.StatusCode != 0 {
		return strconv.Itoa(o.StatusCode)
	}
	return o.Marker
}

func (o Outcome) String() string {
	if o.OK {
		return fmt.Sprintf("ok (%s)", o.StatusOrMarker())
	}
	return fmt.Sprintf("%s: %s", o.Kind, o.Message)
}

func success(statusCode int, marker, snippet string, latency time.Duration) Outcome {
	return Outcome{
		OK:         true,
		StatusCode: statusCode,
		Marker:     marker,
		Snippet:    snippet,
		Latency:    latency,
	}
}

func failure(err error, latency time.Duration) Outcome {
	kind, msg := Classify(err)
	return Outcome{Kind: kind, Message: msg, Latency: latency}
}

const schemeAdvice = "check that the scheme and port match the target (e.g. https against a plaintext port)"

// Classify maps a transport error onto the failure taxonomy. Precedence:
// unresolved host, refused/reset connection, timeout, protocol mismatch,
// anything else.
func Classify(err error) (FailureKind, string) {
	if err == nil {
		return "", ""
	}
	msg := err.Error()

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || strings.Contains(msg, "no such host") {
		return FailHostUnresolvable, msg
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") {
		return FailConnectionRefused, msg
	}

	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return FailTimeout, msg
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailTimeout, msg
	}

	var recErr tls.RecordHeaderError
	if errors.As(err, &recErr) ||
		strings.Contains(msg, "first record does not look like a TLS handshake") ||
		errors.Is(err, websocket.ErrBadHandshake) {
		return FailProtocol, msg + "; " + schemeAdvice
	}

	return FailOther, msg
}
