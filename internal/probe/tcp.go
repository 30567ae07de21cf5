package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/torosent/netprobe/internal/logging"
)

// tcpProbe opens one connection per Execute, writes the payload and attempts
// a single bounded read. A missing or empty response is still a success: the
// probe answers "is the host reachable and accepting writes", not "does it
// reply".
type tcpProbe struct {
	target         Target
	timeout        time.Duration
	connectTimeout time.Duration
	logger         logging.Logger
}

func newTCPProbe(target Target, opts Options) *tcpProbe {
	return &tcpProbe{
		target:         target,
		timeout:        opts.Timeout,
		connectTimeout: opts.ConnectTimeout,
		logger:         opts.Logger,
	}
}

func (p *tcpProbe) Execute(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	dialer := &net.Dialer{Timeout: p.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.target.Address())
	if err != nil {
		return failure(err, time.Since(start))
	}
	defer conn.Close()

	deadline := start.Add(p.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return failure(err, time.Since(start))
	}

	if p.target.Payload != "" {
		payload := WrapPayload(p.target.Payload, time.Now())
		if _, err := conn.Write([]byte(payload)); err != nil {
			return failure(err, time.Since(start))
		}
	}

	// Bound the read by the socket-level timeout so a silent endpoint does
	// not hold the probe for the whole overall deadline.
	readDeadline := time.Now().Add(p.connectTimeout)
	if readDeadline.After(deadline) {
		readDeadline = deadline
	}
	_ = conn.SetReadDeadline(readDeadline)

	snippet, err := readResponse(conn)
	latency := time.Since(start)
	if err != nil {
		return failure(err, latency)
	}

	p.logger.Debug("tcp probe done", "addr", p.target.Address(), "latency", latency)
	return success(0, "sent", snippet, latency)
}

// readResponse performs one bounded read. EOF and read timeouts are not
// errors here: many raw TCP endpoints accept data without answering.
func readResponse(conn net.Conn) (string, error) {
	buf := make([]byte, snippetByteLimit)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) && !isReadTimeout(err) {
		return "", err
	}
	return strings.TrimRight(string(buf[:n]), "\r\n"), nil
}

func isReadTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
