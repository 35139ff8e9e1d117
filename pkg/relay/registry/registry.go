package registry

import (
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Registry tracks every live client keyed by connection id. It is the single
// shared mutable structure in the relay: one mutex, no I/O, and no lock held
// across anything that can block.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	seq     int64
	epoch   string
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clients: make(map[string]*Client),
		epoch:   strconv.FormatInt(time.Now().UnixMilli(), 36),
		logger:  logger,
	}
}

// Add stores the client. If the client has no session code yet one is
// assigned from a counter combined with the process start timestamp, so
// generated codes cannot collide across restarts within one process
// lifetime. Adding an id twice replaces the old record and closes it.
func (r *Registry) Add(c *Client) {
	r.mu.Lock()
	if c.session == "" {
		r.seq++
		c.session = "s" + r.epoch + "-" + strconv.FormatInt(r.seq, 10)
	}
	old := r.clients[c.id]
	r.clients[c.id] = c
	r.mu.Unlock()

	if old != nil && old != c {
		old.Close()
	}
}

// AdoptSession sets the session code on a client that connected without one.
// No-op once the client already carries a code.
func (r *Registry) AdoptSession(c *Client, session string) {
	r.mu.Lock()
	if c.session == "" {
		c.session = session
	}
	r.mu.Unlock()
}

// Remove drops the client and returns it. Unknown ids are a no-op; remove
// never signals anything.
func (r *Registry) Remove(id string) *Client {
	r.mu.Lock()
	c := r.clients[id]
	delete(r.clients, id)
	r.mu.Unlock()
	return c
}

func (r *Registry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[id]
	return c, ok
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// All returns a snapshot of every client.
func (r *Registry) All() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

func (r *Registry) ByRole(role string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Client
	for _, c := range r.clients {
		if c.Role() == role {
			out = append(out, c)
		}
	}
	return out
}

func (r *Registry) ByLanguage(language string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Client
	for _, c := range r.clients {
		if c.Language() == language {
			out = append(out, c)
		}
	}
	return out
}

// BySession returns every client attached to the given session code.
func (r *Registry) BySession(session string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Client
	for _, c := range r.clients {
		if c.session == session {
			out = append(out, c)
		}
	}
	return out
}

// Languages lists the distinct non-empty language tags among clients with
// the given role, sorted for stable output.
func (r *Registry) Languages(role string) []string {
	r.mu.Lock()
	seen := make(map[string]struct{})
	for _, c := range r.clients {
		if c.Role() != role {
			continue
		}
		if lang := c.Language(); lang != "" {
			seen[lang] = struct{}{}
		}
	}
	r.mu.Unlock()

	out := make([]string, 0, len(seen))
	for lang := range seen {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// WarnAll queues the payload as a priority frame on every client. Used on
// drain; send failures are ignored, the close that follows settles it.
func (r *Registry) WarnAll(payload []byte) (sent int) {
	for _, c := range r.All() {
		if err := c.SendPriority(payload); err == nil {
			sent++
		}
	}
	return sent
}

// CloseAll closes every client and empties the registry.
func (r *Registry) CloseAll() (closed int) {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
		closed++
	}
	return closed
}
