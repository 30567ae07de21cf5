package probe

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"strconv"
	"testing"
	"time"
)

// startTCPServer accepts one connection and hands it to handle.
func startTCPServer(t *testing.T, handle func(net.Conn)) Target {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return NewTCPTarget(host, port, "")
}

func TestTCPProbeEchoResponse(t *testing.T) {
	target := startTCPServer(t, func(conn net.Conn) {
		buf := make([]byte, 1024)
		n, _ := conn.Read(buf)
		conn.Write(buf[:n])
	})
	target.Payload = `{"ping":1}`

	outcome := mustProbe(t, target, newTestOptions()).Execute(context.Background())

	if !outcome.Accepted() {
		t.Fatalf("expected acceptance, got %+v", outcome)
	}
	if outcome.Marker != "sent" {
		t.Fatalf("got marker %q", outcome.Marker)
	}
	if outcome.Snippet != `{"ping":1}` {
		t.Fatalf("got snippet %q", outcome.Snippet)
	}
}

func TestTCPProbeSilentEndpointStillSucceeds(t *testing.T) {
	target := startTCPServer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	})
	target.Payload = "hello"

	opts := Options{Timeout: 5 * time.Second, ConnectTimeout: 100 * time.Millisecond}
	start := time.Now()
	outcome := mustProbe(t, target, opts).Execute(context.Background())
	elapsed := time.Since(start)

	if !outcome.Accepted() {
		t.Fatalf("silent endpoint must still succeed: %+v", outcome)
	}
	// The read is bounded by the connect timeout, not the overall one.
	if elapsed > 2*time.Second {
		t.Fatalf("probe held for %v against a silent endpoint", elapsed)
	}
}

func TestTCPProbeWrapsRawPayload(t *testing.T) {
	received := make(chan []byte, 1)
	target := startTCPServer(t, func(conn net.Conn) {
		buf := make([]byte, 1024)
		n, _ := conn.Read(buf)
		received <- buf[:n:n]
	})
	target.Payload = "plain text ping"

	outcome := mustProbe(t, target, newTestOptions()).Execute(context.Background())
	if !outcome.Accepted() {
		t.Fatalf("probe failed: %+v", outcome)
	}

	select {
	case raw := <-received:
		var decoded struct {
			Message   string `json:"message"`
			Timestamp string `json:"timestamp"`
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("payload on the wire is not JSON: %v (%q)", err, raw)
		}
		if decoded.Message != "plain text ping" || decoded.Timestamp == "" {
			t.Fatalf("got %+v", decoded)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the payload")
	}
}

func TestTCPProbeConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	outcome := mustProbe(t, NewTCPTarget(host, port, ""), newTestOptions()).Execute(context.Background())
	if outcome.OK {
		t.Fatal("expected failure against closed port")
	}
	if outcome.Kind != FailConnectionRefused {
		t.Fatalf("got kind %q (%s)", outcome.Kind, outcome.Message)
	}
}

func TestTCPProbeUnresolvableHost(t *testing.T) {
	target := NewTCPTarget("host.invalid", 9000, "")
	opts := Options{Timeout: 2 * time.Second, ConnectTimeout: 2 * time.Second}

	outcome := mustProbe(t, target, opts).Execute(context.Background())
	if outcome.OK {
		t.Fatal("expected failure for unresolvable host")
	}
	if outcome.Kind != FailHostUnresolvable {
		t.Fatalf("got kind %q (%s)", outcome.Kind, outcome.Message)
	}
}

func TestTCPProbeNoPayloadConnectOnly(t *testing.T) {
	target := startTCPServer(t, func(conn net.Conn) {
		io.Copy(io.Discard, conn)
	})

	opts := Options{Timeout: 2 * time.Second, ConnectTimeout: 100 * time.Millisecond}
	outcome := mustProbe(t, target, opts).Execute(context.Background())
	if !outcome.Accepted() {
		t.Fatalf("connect-only probe must succeed: %+v", outcome)
	}
}
