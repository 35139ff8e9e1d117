//go:build integration
// +build integration

// Package integration_test exercises a running relay end to end over real
// websockets. Point LINGUACAST_INTEGRATION_URL at a deployed relay (for
// example http://localhost:8080) and run with -tags=integration. Tests that
// need a working pipeline expect the relay to have at least one healthy tier
// per stage.
package integration_test

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const frameTimeout = 20 * time.Second

func relayBaseURL(t *testing.T) string {
	t.Helper()
	base := os.Getenv("LINGUACAST_INTEGRATION_URL")
	if base == "" {
		t.Skip("LINGUACAST_INTEGRATION_URL not set")
	}
	return strings.TrimRight(base, "/")
}

func dialRelay(t *testing.T, base, query string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(base, "http", "ws", 1) + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			t.Fatalf("dial %s: %v (status %d)", url, err, resp.StatusCode)
		}
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, timeout time.Duration) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

// waitForType discards interleaved frames (acks, pongs, transcription
// results) until one of the wanted type arrives.
func waitForType(t *testing.T, conn *websocket.Conn, typ string, timeout time.Duration) map[string]any {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("no %q frame within %v", typ, timeout)
		}
		frame := readFrame(t, conn, remaining)
		if frame["type"] == typ {
			return frame
		}
	}
}

// sessionCode returns a code unlikely to collide with other suite runs
// against the same relay.
func sessionCode() string {
	return fmt.Sprintf("IT%06d", time.Now().UnixNano()%1_000_000)
}
