package registry

import (
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeConn struct {
	mu       sync.Mutex
	frames   []string
	controls []int
	writeErr error
	closed   bool
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.frames = append(f.frames, string(data))
	return nil
}

func (f *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.controls = append(f.controls, messageType)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClient_PumpWritesQueuedFrames(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("c1", conn, ClientConfig{})
	if err := c.Send([]byte(`{"type":"pong"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	pumpDone := make(chan error, 1)
	go func() { pumpDone <- c.WritePump() }()

	waitFor(t, "frame write", func() bool { return conn.frameCount() == 1 })
	c.Close()
	if err := <-pumpDone; err != nil {
		t.Fatalf("WritePump() error = %v", err)
	}
	if !conn.closed {
		t.Fatal("conn not closed after pump exit")
	}
}

func TestClient_PriorityWrittenBeforeNormal(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("c1", conn, ClientConfig{})
	if err := c.Send([]byte("normal")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := c.SendPriority([]byte("urgent")); err != nil {
		t.Fatalf("SendPriority() error = %v", err)
	}

	pumpDone := make(chan error, 1)
	go func() { pumpDone <- c.WritePump() }()
	waitFor(t, "both frames", func() bool { return conn.frameCount() == 2 })
	c.Close()
	<-pumpDone

	if conn.frames[0] != "urgent" {
		t.Fatalf("first frame = %q, want urgent", conn.frames[0])
	}
}

func TestClient_SendFailsFastWhenQueueFull(t *testing.T) {
	c := NewClient("c1", &fakeConn{}, ClientConfig{SendQueueSize: 1})
	if err := c.Send([]byte("a")); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}
	err := c.Send([]byte("b"))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestClient_SendAfterClose(t *testing.T) {
	c := NewClient("c1", &fakeConn{}, ClientConfig{})
	c.Close()
	if err := c.Send([]byte("x")); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("err = %v, want ErrClientClosed", err)
	}
	// Close twice is fine.
	c.Close()
}

func TestClient_PumpStopsOnWriteError(t *testing.T) {
	conn := &fakeConn{writeErr: errors.New("broken pipe")}
	c := NewClient("c1", conn, ClientConfig{})
	if err := c.Send([]byte("x")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := c.WritePump(); err == nil {
		t.Fatal("expected pump error")
	}
	if c.Alive() {
		t.Fatal("client still alive after pump error")
	}
}

func TestClient_PumpFlushesPriorityOnClose(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("c1", conn, ClientConfig{})
	if err := c.SendPriority([]byte("bye")); err != nil {
		t.Fatalf("SendPriority() error = %v", err)
	}
	c.Close()
	if err := c.WritePump(); err != nil {
		t.Fatalf("WritePump() error = %v", err)
	}
	if conn.frameCount() != 1 || conn.frames[0] != "bye" {
		t.Fatalf("frames=%v, want priority frame flushed", conn.frames)
	}
	found := false
	for _, mt := range conn.controls {
		if mt == websocket.CloseMessage {
			found = true
		}
	}
	if !found {
		t.Fatal("no close frame written")
	}
}

func TestClient_SettingsCopyAndMerge(t *testing.T) {
	c := NewClient("c1", &fakeConn{}, ClientConfig{})
	c.UpdateSettings(map[string]string{"voice": "Lucia"})
	c.UpdateSettings(map[string]string{"synthesisTier": "polly"})

	got := c.Settings()
	if got["voice"] != "Lucia" || got["synthesisTier"] != "polly" {
		t.Fatalf("settings=%v", got)
	}
	got["voice"] = "mutated"
	if c.Setting("voice") != "Lucia" {
		t.Fatal("Settings() returned a live reference")
	}
}

func TestPingRTT(t *testing.T) {
	payload := strconv.FormatInt(time.Now().Add(-50*time.Millisecond).UnixNano(), 10)
	rtt := PingRTT(payload)
	if rtt < 50*time.Millisecond || rtt > 2*time.Second {
		t.Fatalf("rtt=%v", rtt)
	}
	if PingRTT("ping") != 0 {
		t.Fatalf("garbage payload should yield 0")
	}
}

func TestRegistry_AddAssignsUniqueSessionCodes(t *testing.T) {
	r := New(nil)
	a := NewClient("a", &fakeConn{}, ClientConfig{})
	b := NewClient("b", &fakeConn{}, ClientConfig{})
	r.Add(a)
	r.Add(b)

	if a.Session() == "" || b.Session() == "" {
		t.Fatalf("sessions not assigned: %q %q", a.Session(), b.Session())
	}
	if a.Session() == b.Session() {
		t.Fatalf("duplicate generated session code %q", a.Session())
	}
	if !strings.HasPrefix(a.Session(), "s") {
		t.Fatalf("session=%q", a.Session())
	}
}

func TestRegistry_AddKeepsSuppliedSession(t *testing.T) {
	r := New(nil)
	c := NewClient("a", &fakeConn{}, ClientConfig{})
	c.session = "ROOM1"
	r.Add(c)
	if c.Session() != "ROOM1" {
		t.Fatalf("session=%q", c.Session())
	}
}

func TestRegistry_AddSameIDReplacesOld(t *testing.T) {
	r := New(nil)
	old := NewClient("a", &fakeConn{}, ClientConfig{})
	r.Add(old)
	repl := NewClient("a", &fakeConn{}, ClientConfig{})
	r.Add(repl)

	if r.Count() != 1 {
		t.Fatalf("count=%d, want 1", r.Count())
	}
	if old.Alive() {
		t.Fatal("replaced client still alive")
	}
	got, ok := r.Get("a")
	if !ok || got != repl {
		t.Fatalf("Get returned %v", got)
	}
}

func TestRegistry_RemoveUnknownIsNoop(t *testing.T) {
	r := New(nil)
	if c := r.Remove("ghost"); c != nil {
		t.Fatalf("Remove(ghost)=%v, want nil", c)
	}
}

func TestRegistry_QueriesByRoleAndLanguage(t *testing.T) {
	r := New(nil)
	speaker := NewClient("sp", &fakeConn{}, ClientConfig{})
	speaker.SetRole("speaker")
	speaker.SetLanguage("en-US")
	es := NewClient("l1", &fakeConn{}, ClientConfig{})
	es.SetRole("listener")
	es.SetLanguage("es-ES")
	fr := NewClient("l2", &fakeConn{}, ClientConfig{})
	fr.SetRole("listener")
	fr.SetLanguage("fr-FR")
	es2 := NewClient("l3", &fakeConn{}, ClientConfig{})
	es2.SetRole("listener")
	es2.SetLanguage("es-ES")
	mute := NewClient("l4", &fakeConn{}, ClientConfig{})
	mute.SetRole("listener")
	for _, c := range []*Client{speaker, es, fr, es2, mute} {
		r.Add(c)
	}

	if n := len(r.ByRole("listener")); n != 4 {
		t.Fatalf("listeners=%d, want 4", n)
	}
	if n := len(r.ByLanguage("es-ES")); n != 2 {
		t.Fatalf("es-ES=%d, want 2", n)
	}
	langs := r.Languages("listener")
	if len(langs) != 2 || langs[0] != "es-ES" || langs[1] != "fr-FR" {
		t.Fatalf("languages=%v", langs)
	}
}

func TestRegistry_BySession(t *testing.T) {
	r := New(nil)
	a := NewClient("a", &fakeConn{}, ClientConfig{})
	a.session = "ROOM1"
	b := NewClient("b", &fakeConn{}, ClientConfig{})
	b.session = "ROOM1"
	c := NewClient("c", &fakeConn{}, ClientConfig{})
	c.session = "ROOM2"
	for _, cl := range []*Client{a, b, c} {
		r.Add(cl)
	}
	if n := len(r.BySession("ROOM1")); n != 2 {
		t.Fatalf("ROOM1=%d, want 2", n)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	r := New(nil)
	a := NewClient("a", &fakeConn{}, ClientConfig{})
	b := NewClient("b", &fakeConn{}, ClientConfig{})
	r.Add(a)
	r.Add(b)

	if n := r.CloseAll(); n != 2 {
		t.Fatalf("closed=%d, want 2", n)
	}
	if r.Count() != 0 {
		t.Fatalf("count=%d, want 0", r.Count())
	}
	if a.Alive() || b.Alive() {
		t.Fatal("clients still alive")
	}
}
