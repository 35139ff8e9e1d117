package heartbeat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linguacast/linguacast/pkg/relay/registry"
)

type fakeConn struct {
	mu       sync.Mutex
	pings    int
	pingErr  error
	lastPing []byte
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error           { return nil }
func (c *fakeConn) WriteMessage(messageType int, b []byte) error { return nil }
func (c *fakeConn) Close() error                                 { return nil }

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	if messageType != websocket.PingMessage {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingErr != nil {
		return c.pingErr
	}
	c.pings++
	c.lastPing = data
	return nil
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMonitor(t *testing.T, cfg Config) (*Monitor, *registry.Registry) {
	t.Helper()
	reg := registry.New(testLogger())
	return NewMonitor(reg, cfg, testLogger()), reg
}

func addClient(t *testing.T, reg *registry.Registry, id string, conn *fakeConn) *registry.Client {
	t.Helper()
	c := registry.NewClient(id, conn, registry.ClientConfig{})
	reg.Add(c)
	t.Cleanup(c.Close)
	return c
}

func TestBeatPingsLiveClients(t *testing.T) {
	m, reg := newTestMonitor(t, Config{Interval: time.Second, LivenessWindow: time.Minute})

	connA, connB := &fakeConn{}, &fakeConn{}
	addClient(t, reg, "a", connA)
	addClient(t, reg, "b", connB)

	pinged, evicted := m.Beat()
	if pinged != 2 || evicted != 0 {
		t.Fatalf("Beat() = %d pinged, %d evicted, want 2, 0", pinged, evicted)
	}
	if connA.pingCount() != 1 || connB.pingCount() != 1 {
		t.Fatalf("ping counts = %d, %d, want 1 each", connA.pingCount(), connB.pingCount())
	}
	if reg.Count() != 2 {
		t.Fatalf("reg.Count() = %d, want 2", reg.Count())
	}
}

func TestBeatEvictsSilentClient(t *testing.T) {
	m, reg := newTestMonitor(t, Config{Interval: time.Second, LivenessWindow: time.Minute})
	m.now = (&fakeClock{t: time.Now().Add(2 * time.Minute)}).Now

	conn := &fakeConn{}
	c := addClient(t, reg, "quiet", conn)

	pinged, evicted := m.Beat()
	if pinged != 0 || evicted != 1 {
		t.Fatalf("Beat() = %d pinged, %d evicted, want 0, 1", pinged, evicted)
	}
	if reg.Count() != 0 {
		t.Fatalf("reg.Count() = %d, want 0", reg.Count())
	}
	if c.Alive() {
		t.Fatal("evicted client still alive")
	}
	if conn.pingCount() != 0 {
		t.Fatalf("silent client was pinged %d times, want 0", conn.pingCount())
	}
}

func TestBeatRecentPongSurvives(t *testing.T) {
	m, reg := newTestMonitor(t, Config{Interval: time.Second, LivenessWindow: time.Minute})
	m.now = (&fakeClock{t: time.Now().Add(30 * time.Second)}).Now

	conn := &fakeConn{}
	addClient(t, reg, "fresh", conn)

	pinged, evicted := m.Beat()
	if pinged != 1 || evicted != 0 {
		t.Fatalf("Beat() = %d pinged, %d evicted, want 1, 0", pinged, evicted)
	}
}

func TestBeatEvictsOnPingWriteFailure(t *testing.T) {
	m, reg := newTestMonitor(t, Config{Interval: time.Second, LivenessWindow: time.Minute})

	conn := &fakeConn{pingErr: errors.New("broken pipe")}
	c := addClient(t, reg, "broken", conn)

	_, evicted := m.Beat()
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if reg.Count() != 0 || c.Alive() {
		t.Fatal("client with dead socket should be removed and closed")
	}
}

func TestRunBeatsUntilCancelled(t *testing.T) {
	m, reg := newTestMonitor(t, Config{Interval: 5 * time.Millisecond, LivenessWindow: time.Minute})

	conn := &fakeConn{}
	addClient(t, reg, "a", conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for conn.pingCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for pings")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
