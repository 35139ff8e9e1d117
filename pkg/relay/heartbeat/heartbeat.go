// Package heartbeat pings every connection on a fixed cadence and evicts
// the ones that fall silent.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"github.com/linguacast/linguacast/pkg/relay/registry"
)

// Config sets the ping cadence and how long a connection may go without a
// pong before it is evicted.
type Config struct {
	Interval       time.Duration
	LivenessWindow time.Duration
	WriteTimeout   time.Duration
}

// Monitor drives liveness for the whole registry. The browser side answers
// control pings automatically, so a healthy connection needs no client code
// to stay alive.
type Monitor struct {
	reg    *registry.Registry
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewMonitor(reg *registry.Registry, cfg Config, logger *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.LivenessWindow <= 0 {
		cfg.LivenessWindow = 3 * cfg.Interval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{reg: reg, cfg: cfg, logger: logger, now: time.Now}
}

// Run beats until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Beat()
		}
	}
}

// Beat pings every registered connection once. Connections whose last pong
// is older than the liveness window, or whose ping cannot be written, are
// removed and closed. Beat also clears out entries that were closed
// elsewhere but never removed.
func (m *Monitor) Beat() (pinged, evicted int) {
	now := m.now()
	for _, c := range m.reg.All() {
		silence := now.Sub(c.LastPong())
		if silence > m.cfg.LivenessWindow {
			m.logger.Info("connection unresponsive, evicting",
				"client", c.ID(), "session", c.Session(), "silence", silence)
			m.evict(c)
			evicted++
			continue
		}
		if err := c.Ping(m.cfg.WriteTimeout); err != nil {
			m.logger.Info("ping failed, evicting", "client", c.ID(), "err", err)
			m.evict(c)
			evicted++
			continue
		}
		pinged++
	}
	return pinged, evicted
}

func (m *Monitor) evict(c *registry.Client) {
	m.reg.Remove(c.ID())
	c.Close()
}
