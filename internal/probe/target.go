package probe

import (
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// TargetKind selects the transport a run exercises.
type TargetKind string

const (
	KindHTTP      TargetKind = "http"
	KindTCP       TargetKind = "tcp"
	KindWebSocket TargetKind = "websocket"
)

// Target describes one endpoint to probe. Exactly one kind per run.
type Target struct {
	Kind TargetKind

	// HTTP and WebSocket targets.
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Message string

	// TCP targets.
	Host    string
	Port    int
	Payload string
}

// NewHTTPTarget builds an HTTP(S) target. Method defaults to GET.
func NewHTTPTarget(rawURL, method string, headers map[string]string, body string) Target {
	if strings.TrimSpace(method) == "" {
		method = "GET"
	}
	return Target{
		Kind:    KindHTTP,
		URL:     rawURL,
		Method:  strings.ToUpper(strings.TrimSpace(method)),
		Headers: headers,
		Body:    body,
	}
}

// NewTCPTarget builds a raw TCP target with an optional payload.
func NewTCPTarget(host string, port int, payload string) Target {
	return Target{Kind: KindTCP, Host: host, Port: port, Payload: payload}
}

// NewWebSocketTarget builds a WebSocket target with an optional message to send.
func NewWebSocketTarget(rawURL string, headers map[string]string, message string) Target {
	return Target{Kind: KindWebSocket, URL: rawURL, Headers: headers, Message: message}
}

// ParseTarget interprets a raw endpoint string: http(s) and ws(s) URLs keep
// their scheme, a bare host:port pair becomes a TCP target.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("target is required")
	}

	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return Target{}, fmt.Errorf("invalid target URL %q: %w", raw, err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return NewHTTPTarget(raw, "GET", nil, ""), nil
		case "ws", "wss":
			return NewWebSocketTarget(raw, nil, ""), nil
		default:
			return Target{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return Target{}, fmt.Errorf("target must be a URL or host:port pair: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("invalid port %q", portStr)
	}
	return NewTCPTarget(host, port, ""), nil
}

// Validate checks that the target is well formed for its kind.
func (t Target) Validate() error {
	switch t.Kind {
	case KindHTTP, KindWebSocket:
		u, err := url.Parse(t.URL)
		if err != nil {
			return fmt.Errorf("invalid target URL %q: %w", t.URL, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("target URL %q must include scheme and host", t.URL)
		}
	case KindTCP:
		if strings.TrimSpace(t.Host) == "" {
			return fmt.Errorf("tcp target host is required")
		}
		if t.Port < 1 || t.Port > 65535 {
			return fmt.Errorf("tcp target port %d out of range", t.Port)
		}
	default:
		return fmt.Errorf("unknown target kind %q", t.Kind)
	}
	return nil
}

// Address returns the dial address for a TCP target.
func (t Target) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// String renders the target for logging and reports.
func (t Target) String() string {
	if t.Kind == KindTCP {
		return "tcp://" + t.Address()
	}
	return t.URL
}

type wrappedPayload struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// WrapPayload returns the payload unchanged when it already is valid JSON,
// otherwise wraps the raw text as {"message": ..., "timestamp": ...}.
func WrapPayload(payload string, now time.Time) string {
	trimmed := strings.TrimSpace(payload)
	if trimmed != "" && gjson.Valid(trimmed) {
		return payload
	}
	wrapped, err := json.Marshal(wrappedPayload{
		Message:   payload,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return payload
	}
	return string(wrapped)
}
