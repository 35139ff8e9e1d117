package store

import (
	"context"
	"sync"
	"time"
)

const defaultCapacity = 1000

// Memory is a bounded in-memory Store. When the capacity is reached the
// oldest entry across all sessions is dropped.
type Memory struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
}

// NewMemory creates an in-memory store. capacity <= 0 selects the default.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Memory{capacity: capacity}
}

// Append records one entry, evicting the oldest when full.
func (m *Memory) Append(ctx context.Context, entry Entry) error {
	if entry.DeliveredAt.IsZero() {
		entry.DeliveredAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	if len(m.entries) > m.capacity {
		overflow := len(m.entries) - m.capacity
		m.entries = append(m.entries[:0:0], m.entries[overflow:]...)
	}
	return nil
}

// Recent returns up to limit entries for a session, newest first.
func (m *Memory) Recent(ctx context.Context, session string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultCapacity
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, min(limit, len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].Session == session {
			out = append(out, m.entries[i])
		}
	}
	return out, nil
}

// PurgeSession drops a session's entries.
func (m *Memory) PurgeSession(ctx context.Context, session string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	dropped := 0
	for _, entry := range m.entries {
		if entry.Session == session {
			dropped++
			continue
		}
		kept = append(kept, entry)
	}
	m.entries = kept
	return dropped, nil
}

// Len reports the stored entry count, for diagnostics.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
