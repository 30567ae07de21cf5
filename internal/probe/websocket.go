package probe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/torosent/netprobe/internal/logging"
)

// webSocketProbe performs one dial + optional message round-trip per Execute.
type webSocketProbe struct {
	target  Target
	dialer  *websocket.Dialer
	timeout time.Duration
	logger  logging.Logger
}

func newWebSocketProbe(target Target, opts Options) *webSocketProbe {
	dialer := &websocket.Dialer{
		HandshakeTimeout: opts.ConnectTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	return &webSocketProbe{
		target:  target,
		dialer:  dialer,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

func (p *webSocketProbe) Execute(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	headers := http.Header{}
	for key, value := range p.target.Headers {
		headers.Set(key, value)
	}

	start := time.Now()
	conn, resp, err := p.dialer.DialContext(ctx, p.target.URL, headers)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		return failure(err, time.Since(start))
	}
	defer conn.Close()
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}

	if p.target.Message == "" {
		latency := time.Since(start)
		p.logger.Debug("websocket probe done", "latency", latency)
		return success(0, "connected", "", latency)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = start.Add(p.timeout)
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(p.target.Message)); err != nil {
		return failure(err, time.Since(start))
	}

	_ = conn.SetReadDeadline(deadline)
	conn.SetReadLimit(snippetByteLimit)
	_, data, err := conn.ReadMessage()
	latency := time.Since(start)
	if err != nil && !isReadTimeout(err) && !errors.Is(err, websocket.ErrReadLimit) {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return success(0, "sent", "", latency)
		}
		return failure(err, latency)
	}

	p.logger.Debug("websocket probe done", "latency", latency)
	return success(0, "sent", string(data), latency)
}
