// Package sessions tracks broadcast sessions and ends them when their
// participants go away.
package sessions

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/protocol"
	"github.com/linguacast/linguacast/pkg/relay/registry"
	"github.com/linguacast/linguacast/pkg/relay/store"
)

// State classifies a session between sweeps.
type State string

const (
	StateActive          State = "active"
	StateSpeakerAbsent   State = "speaker-absent"
	StateListenersAbsent State = "listeners-absent"
	StateStale           State = "stale"
	StateEnded           State = "ended"
)

// End reasons, sent to participants in the session_ending warning.
const (
	ReasonSpeakerAbsent   = "speaker_absent"
	ReasonListenersAbsent = "listeners_absent"
	ReasonStale           = "stale"
	ReasonShutdown        = "server_shutdown"
)

// Config carries the sweep cadence and the three independent timeout
// clocks, plus the cooldown window for ended session codes.
type Config struct {
	SweepInterval          time.Duration
	SpeakerAbsentTimeout   time.Duration
	ListenersAbsentTimeout time.Duration
	StaleTimeout           time.Duration
	CodeCooldown           time.Duration
}

type session struct {
	code                 string
	createdAt            time.Time
	lastActivity         time.Time
	state                State
	speakerAbsentSince   time.Time
	listenersAbsentSince time.Time
}

// Info is a point-in-time view of one session, for diagnostics.
type Info struct {
	Code         string
	State        State
	CreatedAt    time.Time
	LastActivity time.Time
	Speakers     int
	Listeners    int
}

// Lifecycle sweeps sessions at a fixed interval. Presence is derived from
// the registry on every pass rather than event-tracked, so a missed event
// can never wedge a session open.
type Lifecycle struct {
	reg    *registry.Registry
	store  store.Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	cooldown map[string]time.Time
}

func NewLifecycle(reg *registry.Registry, st store.Store, cfg Config, logger *slog.Logger) *Lifecycle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Lifecycle{
		reg:      reg,
		store:    st,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*session),
		cooldown: make(map[string]time.Time),
	}
}

// Touch creates the session record if needed and refreshes its
// last-activity stamp. Called on connect and on every inbound frame.
func (l *Lifecycle) Touch(code string) {
	code = strings.TrimSpace(code)
	if code == "" {
		return
	}
	now := l.now()
	l.mu.Lock()
	s, ok := l.sessions[code]
	if !ok {
		s = &session{code: code, createdAt: now, state: StateActive}
		l.sessions[code] = s
	}
	s.lastActivity = now
	l.mu.Unlock()
}

// CanClaim reports whether a new speaker may take the code. Codes of ended
// sessions stay blocked until their cooldown expires.
func (l *Lifecycle) CanClaim(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	endedAt, ok := l.cooldown[code]
	if !ok {
		return true
	}
	if l.now().Sub(endedAt) > l.cfg.CodeCooldown {
		delete(l.cooldown, code)
		return true
	}
	return false
}

func (l *Lifecycle) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// Sessions lists every tracked session with a live census.
func (l *Lifecycle) Sessions() []Info {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Info, 0, len(l.sessions))
	for code, s := range l.sessions {
		speakers, listeners := l.census(code)
		out = append(out, Info{
			Code:         code,
			State:        s.state,
			CreatedAt:    s.createdAt,
			LastActivity: s.lastActivity,
			Speakers:     speakers,
			Listeners:    listeners,
		})
	}
	return out
}

// Run sweeps until ctx is done.
func (l *Lifecycle) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

type ending struct {
	code   string
	reason string
}

// Sweep evaluates every session's three clocks once. Whichever fires first
// ends the session: participants are warned, removed from the registry and
// closed, and the code starts its cooldown.
func (l *Lifecycle) Sweep() {
	now := l.now()
	var toEnd []ending

	l.mu.Lock()
	for code, s := range l.sessions {
		speakers, listeners := l.census(code)

		if speakers > 0 {
			s.speakerAbsentSince = time.Time{}
		} else if s.speakerAbsentSince.IsZero() {
			s.speakerAbsentSince = now
		}
		if listeners > 0 {
			s.listenersAbsentSince = time.Time{}
		} else if s.listenersAbsentSince.IsZero() {
			s.listenersAbsentSince = now
		}

		var reason string
		switch {
		case !s.speakerAbsentSince.IsZero() && now.Sub(s.speakerAbsentSince) > l.cfg.SpeakerAbsentTimeout:
			reason = ReasonSpeakerAbsent
		case !s.listenersAbsentSince.IsZero() && now.Sub(s.listenersAbsentSince) > l.cfg.ListenersAbsentTimeout:
			reason = ReasonListenersAbsent
		case now.Sub(s.lastActivity) > l.cfg.StaleTimeout:
			reason = ReasonStale
		}
		if reason != "" {
			s.state = StateEnded
			delete(l.sessions, code)
			l.cooldown[code] = now
			toEnd = append(toEnd, ending{code: code, reason: reason})
			continue
		}

		// Remaining states reflect which clock is running. A session
		// reads as stale once it has sat idle for half its timeout.
		switch {
		case !s.speakerAbsentSince.IsZero():
			s.state = StateSpeakerAbsent
		case !s.listenersAbsentSince.IsZero():
			s.state = StateListenersAbsent
		case now.Sub(s.lastActivity) > l.cfg.StaleTimeout/2:
			s.state = StateStale
		default:
			s.state = StateActive
		}
	}
	l.mu.Unlock()

	for _, e := range toEnd {
		l.endSession(e.code, e.reason)
	}
}

// census counts connected speakers and listeners for a code. Callers hold
// l.mu; the registry takes its own lock and never calls back in.
func (l *Lifecycle) census(code string) (speakers, listeners int) {
	for _, c := range l.reg.BySession(code) {
		switch c.Role() {
		case protocol.RoleSpeaker:
			speakers++
		case protocol.RoleListener:
			listeners++
		}
	}
	return speakers, listeners
}

func (l *Lifecycle) endSession(code, reason string) {
	warn := protocol.SessionEnding{
		Type:    protocol.TypeSessionEnding,
		Reason:  reason,
		Message: endingMessage(reason),
	}
	payload, err := json.Marshal(warn)
	if err != nil {
		payload = nil
	}

	conns := l.reg.BySession(code)
	for _, c := range conns {
		if payload != nil {
			_ = c.SendPriority(payload)
		}
		l.reg.Remove(c.ID())
		c.Close()
	}
	l.logger.Info("session ended", "session", code, "reason", reason, "connections", len(conns))

	if l.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			n, err := l.store.PurgeSession(ctx, code)
			if err != nil {
				l.logger.Warn("session history purge failed", "session", code, "err", err)
				return
			}
			if n > 0 {
				l.logger.Debug("session history purged", "session", code, "entries", n)
			}
		}()
	}
}

// EndAll ends every session with the given reason. Used on shutdown.
func (l *Lifecycle) EndAll(reason string) {
	now := l.now()
	l.mu.Lock()
	codes := make([]string, 0, len(l.sessions))
	for code := range l.sessions {
		codes = append(codes, code)
		delete(l.sessions, code)
		l.cooldown[code] = now
	}
	l.mu.Unlock()

	for _, code := range codes {
		l.endSession(code, reason)
	}
}

func endingMessage(reason string) string {
	switch reason {
	case ReasonSpeakerAbsent:
		return "the speaker did not return"
	case ReasonListenersAbsent:
		return "no listeners remained"
	case ReasonStale:
		return "no recent activity"
	case ReasonShutdown:
		return "the server is shutting down"
	default:
		return "session closed"
	}
}
