// Package drain holds the tiny process state shared across handlers. It is
// used for readiness draining during graceful shutdown.
package drain

import "sync/atomic"

type State struct {
	draining atomic.Bool
}

func (s *State) SetDraining(draining bool) {
	if s == nil {
		return
	}
	s.draining.Store(draining)
}

func (s *State) IsDraining() bool {
	if s == nil {
		return false
	}
	return s.draining.Load()
}
