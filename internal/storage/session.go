package storage

import (
	"context"
	"fmt"
	"sync"

	"iot_query_agent/pkg"
)

// DefaultHistoryCap bounds how many interactions one session keeps.
const DefaultHistoryCap = 50

// SessionStore keeps a bounded per-session history of completed interactions.
// Histories are independent per session id and evicted FIFO past the cap.
type SessionStore interface {
	History(ctx context.Context, sessionID string) ([]pkg.InteractionRecord, error)
	Append(ctx context.Context, sessionID string, record pkg.InteractionRecord) error
	Reset(ctx context.Context, sessionID string) (bool, error)
	ActiveSessions(ctx context.Context) (int, error)
}

// MemorySessionStore is an in-memory implementation for development and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	cap      int
	sessions map[string][]pkg.InteractionRecord
}

// NewMemorySessionStore creates a new in-memory session store. A non-positive
// cap falls back to DefaultHistoryCap.
func NewMemorySessionStore(cap int) *MemorySessionStore {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &MemorySessionStore{
		cap:      cap,
		sessions: make(map[string][]pkg.InteractionRecord),
	}
}

// History returns the recorded interactions for a session, oldest first.
func (m *MemorySessionStore) History(ctx context.Context, sessionID string) ([]pkg.InteractionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := m.sessions[sessionID]
	out := make([]pkg.InteractionRecord, len(history))
	copy(out, history)
	return out, nil
}

// Append records a completed interaction, evicting the oldest entries past
// the cap.
func (m *MemorySessionStore) Append(ctx context.Context, sessionID string, record pkg.InteractionRecord) error {
	if sessionID == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.sessions[sessionID], record)
	if len(history) > m.cap {
		history = history[len(history)-m.cap:]
	}
	m.sessions[sessionID] = history
	return nil
}

// Reset removes a session history. It reports whether the session existed.
func (m *MemorySessionStore) Reset(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	return existed, nil
}

// ActiveSessions returns the number of sessions with recorded history.
func (m *MemorySessionStore) ActiveSessions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions), nil
}
