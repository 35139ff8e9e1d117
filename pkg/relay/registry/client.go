package registry

import (
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrQueueFull    = errors.New("send queue full")
)

// Conn is the slice of *websocket.Conn the outbound side needs. The read
// side stays with the transport that accepted the socket.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// ClientConfig sizes one connection's outbound path.
type ClientConfig struct {
	SendQueueSize int
	WriteTimeout  time.Duration
}

// Client is one live connection and its registered attributes. Mutable
// attributes are guarded by mu; mutations never block on I/O. Outbound
// writes go through a buffered queue drained by WritePump so no caller ever
// blocks on a slow socket.
type Client struct {
	id      string
	session string
	conn    Conn
	cfg     ClientConfig

	mu          sync.Mutex
	role        string
	language    string
	settings    map[string]string
	connectedAt time.Time
	lastPong    time.Time
	rtt         time.Duration

	normal   chan []byte
	priority chan []byte
	done     chan struct{}
	closed   atomic.Bool
	closeWS  sync.Once
}

func NewClient(id string, conn Conn, cfg ClientConfig) *Client {
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = 32
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	now := time.Now()
	return &Client{
		id:          id,
		conn:        conn,
		cfg:         cfg,
		settings:    make(map[string]string),
		connectedAt: now,
		lastPong:    now,
		normal:      make(chan []byte, cfg.SendQueueSize),
		priority:    make(chan []byte, 8),
		done:        make(chan struct{}),
	}
}

func (c *Client) ID() string      { return c.id }
func (c *Client) Session() string { return c.session }

func (c *Client) Role() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Client) SetRole(role string) {
	c.mu.Lock()
	c.role = role
	c.mu.Unlock()
}

func (c *Client) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

func (c *Client) SetLanguage(language string) {
	c.mu.Lock()
	c.language = language
	c.mu.Unlock()
}

// Settings returns a copy; callers never see later mutations.
func (c *Client) Settings() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.settings))
	for k, v := range c.settings {
		out[k] = v
	}
	return out
}

// UpdateSettings merges in the given pairs; existing keys are overwritten.
func (c *Client) UpdateSettings(settings map[string]string) {
	if len(settings) == 0 {
		return
	}
	c.mu.Lock()
	for k, v := range settings {
		c.settings[k] = v
	}
	c.mu.Unlock()
}

func (c *Client) Setting(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings[key]
}

func (c *Client) ConnectedAt() time.Time { return c.connectedAt }

func (c *Client) Alive() bool { return !c.closed.Load() }

// MarkPong records a pong arrival; rtt may be zero when the ping payload
// carried no usable timestamp.
func (c *Client) MarkPong(rtt time.Duration) {
	c.mu.Lock()
	c.lastPong = time.Now()
	if rtt > 0 {
		c.rtt = rtt
	}
	c.mu.Unlock()
}

func (c *Client) LastPong() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPong
}

// RTT is the last control-frame round trip measured for this connection.
func (c *Client) RTT() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtt
}

// Send queues one text frame. It fails fast when the queue is full or the
// client is closed; callers own the retry policy.
func (c *Client) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	select {
	case c.normal <- payload:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrQueueFull
	}
}

// SendJSON marshals v and queues it.
func (c *Client) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Send(payload)
}

// SendPriority queues a frame ahead of normal traffic (error replies, drain
// warnings). Frames still pending at close time are flushed best-effort.
func (c *Client) SendPriority(payload []byte) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	select {
	case c.priority <- payload:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrQueueFull
	}
}

func (c *Client) SendPriorityJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendPriority(payload)
}

// Ping writes a control ping whose payload carries the send time in
// nanoseconds, so the pong handler can compute an RTT.
func (c *Client) Ping(timeout time.Duration) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	payload := strconv.AppendInt(nil, time.Now().UnixNano(), 10)
	return c.conn.WriteControl(websocket.PingMessage, payload, time.Now().Add(timeout))
}

// PingRTT converts an echoed ping payload back into a round trip duration.
func PingRTT(payload string) time.Duration {
	nanos, err := strconv.ParseInt(payload, 10, 64)
	if err != nil || nanos <= 0 {
		return 0
	}
	rtt := time.Since(time.Unix(0, nanos))
	if rtt < 0 {
		return 0
	}
	return rtt
}

// Close stops the writer pump. Safe to call more than once and from any
// goroutine; the pump flushes queued priority frames and writes a close
// frame on its way out.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
}

// Done is closed when the client has been shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

// WritePump drains the outbound queues onto the socket. Runs on its own
// goroutine for the life of the connection; returns the write error that
// ended it, if any. Priority frames preempt normal ones.
func (c *Client) WritePump() error {
	defer c.closeConn()

	for {
		select {
		case <-c.done:
			c.flushPriority()
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteTimeout))
			return nil
		default:
		}

		// Hard priority: anything queued goes out before normal frames.
		select {
		case payload := <-c.priority:
			if err := c.writeFrame(payload); err != nil {
				c.Close()
				return err
			}
			continue
		default:
		}

		select {
		case <-c.done:
			continue
		case payload := <-c.priority:
			if err := c.writeFrame(payload); err != nil {
				c.Close()
				return err
			}
		case payload := <-c.normal:
			if err := c.writeFrame(payload); err != nil {
				c.Close()
				return err
			}
		}
	}
}

func (c *Client) writeFrame(payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *Client) flushPriority() {
	deadline := time.Now().Add(100 * time.Millisecond)
	for i := 0; i < 8 && time.Now().Before(deadline); i++ {
		select {
		case payload := <-c.priority:
			_ = c.writeFrame(payload)
		default:
			return
		}
	}
}

func (c *Client) closeConn() {
	c.closeWS.Do(func() {
		_ = c.conn.Close()
	})
}
