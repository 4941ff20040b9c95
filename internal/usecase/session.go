package usecase

import (
	"sync"
	"time"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// RoleCall records one agent that answered within a session.
type RoleCall struct {
	RoleName  string    `json:"role_name"`
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the short-lived memory kept for one session id.
type Session struct {
	mu                 sync.RWMutex
	ID                 string     `json:"id"`
	RecentCalls        []RoleCall `json:"recent_calls"`
	Summary            string     `json:"summary,omitempty"`
	LastSpiritualState string     `json:"last_spiritual_state,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// LastRole returns the role that answered most recently, or "".
func (s *Session) LastRole() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.RecentCalls) == 0 {
		return ""
	}
	return s.RecentCalls[len(s.RecentCalls)-1].RoleName
}

// Snapshot returns a copy safe to read without holding the session lock.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	calls := make([]RoleCall, len(s.RecentCalls))
	copy(calls, s.RecentCalls)
	return SessionSnapshot{
		ID:                 s.ID,
		RecentCalls:        calls,
		Summary:            s.Summary,
		LastSpiritualState: s.LastSpiritualState,
		UpdatedAt:          s.UpdatedAt,
	}
}

// SessionSnapshot is an immutable view of a Session.
type SessionSnapshot struct {
	ID                 string
	RecentCalls        []RoleCall
	Summary            string
	LastSpiritualState string
	UpdatedAt          time.Time
}

// LastRole returns the role that answered most recently, or "".
func (s SessionSnapshot) LastRole() string {
	if len(s.RecentCalls) == 0 {
		return ""
	}
	return s.RecentCalls[len(s.RecentCalls)-1].RoleName
}

// SessionMemory keeps per-session state in process memory only.
// Entries are dropped by Reap; nothing survives a restart.
type SessionMemory struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxCalls int
	now      func() time.Time
}

// NewSessionMemory creates a store that keeps at most maxCalls role calls per
// session (0 means unlimited).
func NewSessionMemory(maxCalls int) *SessionMemory {
	return &SessionMemory{
		sessions: make(map[string]*Session),
		maxCalls: maxCalls,
		now:      time.Now,
	}
}

// Get returns a snapshot of the session or ErrNotFound.
func (m *SessionMemory) Get(id string) (SessionSnapshot, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return SessionSnapshot{}, domain.NewSubSystemError("session", "SessionMemory.Get", domain.ErrNotFound, id)
	}
	return s.Snapshot(), nil
}

// Record appends role outputs to the session, creating it when needed.
// An empty spiritualState leaves the last known state untouched.
func (m *SessionMemory) Record(id string, outputs []domain.RoleOutput, summary, spiritualState string) {
	if id == "" {
		return
	}
	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{ID: id, UpdatedAt: now}
		m.sessions[id] = s
	}
	m.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range outputs {
		s.RecentCalls = append(s.RecentCalls, RoleCall{RoleName: o.RoleName, AgentID: o.AgentID, Timestamp: now})
	}
	if m.maxCalls > 0 && len(s.RecentCalls) > m.maxCalls {
		s.RecentCalls = s.RecentCalls[len(s.RecentCalls)-m.maxCalls:]
	}
	if summary != "" {
		s.Summary = summary
	}
	if spiritualState != "" {
		s.LastSpiritualState = spiritualState
	}
	s.UpdatedAt = now
}

// Delete removes a session. Returns ErrNotFound if it does not exist.
func (m *SessionMemory) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return domain.NewSubSystemError("session", "SessionMemory.Delete", domain.ErrNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (m *SessionMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap deletes sessions not updated within maxAge and returns how many were removed.
func (m *SessionMemory) Reap(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	// Phase 1: identify stale sessions under read lock (no nested write locks).
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		s.mu.RLock()
		old := s.UpdatedAt.Before(cutoff)
		s.mu.RUnlock()
		if old {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	if len(stale) == 0 {
		return 0
	}

	// Phase 2: delete under write lock.
	m.mu.Lock()
	for _, id := range stale {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	return len(stale)
}
