package probe

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/netprobe/internal/logging"
)

// httpProbe issues one HTTP request per Execute. Plain and TLS schemes run
// through separately tuned transports but produce identical Outcome shapes.
type httpProbe struct {
	target  Target
	client  *http.Client
	timeout time.Duration
	logger  logging.Logger
}

func newHTTPProbe(target Target, opts Options) *httpProbe {
	secure := false
	if u, err := url.Parse(target.URL); err == nil {
		secure = strings.EqualFold(u.Scheme, "https")
	}
	return &httpProbe{
		target:  target,
		client:  newHTTPClient(opts, secure),
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
}

// newHTTPClient builds a client whose transport matches the scheme. Keep-alives
// are disabled so every probe owns and releases its own connection.
func newHTTPClient(opts Options, secure bool) *http.Client {
	dialer := &net.Dialer{Timeout: opts.ConnectTimeout}

	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DialContext:       dialer.DialContext,
		DisableKeepAlives: true,
		MaxIdleConns:      0,
	}
	if secure {
		transport.TLSHandshakeTimeout = opts.ConnectTimeout
		transport.ForceAttemptHTTP2 = true
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
}

func (p *httpProbe) Execute(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var body io.Reader
	if p.target.Body != "" {
		body = strings.NewReader(p.target.Body)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, p.target.Method, p.target.URL, body)
	if err != nil {
		return failure(err, time.Since(start))
	}
	for key, value := range p.target.Headers {
		req.Header.Set(key, value)
	}

	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return failure(err, latency)
	}
	defer resp.Body.Close()

	snippet, readErr := io.ReadAll(io.LimitReader(resp.Body, snippetByteLimit))
	if readErr != nil {
		snippet = nil
	}
	// Drain so the connection closes cleanly even with keep-alives off.
	_, _ = io.Copy(io.Discard, resp.Body)

	p.logger.Debug("http probe done", "status", resp.StatusCode, "latency", latency)
	return success(resp.StatusCode, "", string(snippet), latency)
}
