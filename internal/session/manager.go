package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/acolita/termdriver/internal/adapters/realclock"
	"github.com/acolita/termdriver/internal/ports"
)

// Info describes a registered session.
type Info struct {
	ID        string    `json:"id"`
	Endpoint  string    `json:"endpoint"`
	Hostname  string    `json:"hostname"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

type entry struct {
	driver    *Driver
	createdAt time.Time
	lastUsed  time.Time
}

// Manager keeps connected drivers addressable by id.
type Manager struct {
	sessions    map[string]*entry
	mu          sync.RWMutex
	maxSessions int
	clock       ports.Clock
}

// NewManager creates a session manager. maxSessions <= 0 means no limit.
func NewManager(maxSessions int, clock ports.Clock) *Manager {
	if clock == nil {
		clock = realclock.New()
	}
	return &Manager{
		sessions:    make(map[string]*entry),
		maxSessions: maxSessions,
		clock:       clock,
	}
}

// Create connects a new driver and registers it. The driver's own options
// are applied after the manager's id and clock.
func (m *Manager) Create(ctx context.Context, factory ChannelFactory, markers []string, opts ...Option) (string, *Driver, error) {
	return m.CreateWithID(ctx, NewID(), factory, markers, opts...)
}

// CreateWithID is Create with a caller-chosen id, for callers that need the
// id before the channel opens, e.g. to name a recording.
func (m *Manager) CreateWithID(ctx context.Context, id string, factory ChannelFactory, markers []string, opts ...Option) (string, *Driver, error) {
	m.mu.RLock()
	full := m.maxSessions > 0 && len(m.sessions) >= m.maxSessions
	_, taken := m.sessions[id]
	m.mu.RUnlock()
	if full {
		return "", nil, fmt.Errorf("max sessions reached (%d)", m.maxSessions)
	}
	if taken {
		return "", nil, fmt.Errorf("session id in use: %s", id)
	}

	d := NewDriver(append([]Option{WithID(id), WithClock(m.clock)}, opts...)...)
	if err := d.Connect(ctx, factory, markers); err != nil {
		return "", nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		d.Close()
		return "", nil, fmt.Errorf("max sessions reached (%d)", m.maxSessions)
	}
	if _, ok := m.sessions[id]; ok {
		d.Close()
		return "", nil, fmt.Errorf("session id in use: %s", id)
	}
	now := m.clock.Now()
	m.sessions[id] = &entry{driver: d, createdAt: now, lastUsed: now}
	return id, d, nil
}

// Get retrieves a driver by id and marks it used.
func (m *Manager) Get(id string) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	e.lastUsed = m.clock.Now()
	return e.driver, nil
}

// Close closes and removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	return e.driver.Close()
}

// Prune drops sessions whose driver has closed on its own.
func (m *Manager) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.sessions {
		if e.driver.State() == StateClosed {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// PruneIdle closes sessions unused for longer than maxIdle and returns
// their ids.
func (m *Manager) PruneIdle(maxIdle time.Duration) []string {
	now := m.clock.Now()

	m.mu.Lock()
	var idle []*entry
	var ids []string
	for id, e := range m.sessions {
		if now.Sub(e.lastUsed) > maxIdle {
			idle = append(idle, e)
			ids = append(ids, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range idle {
		e.driver.Close()
	}
	sort.Strings(ids)
	return ids
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	entries := m.sessions
	m.sessions = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range entries {
		e.driver.Close()
	}
}

// List returns all sessions ordered by creation time.
func (m *Manager) List() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Info, 0, len(m.sessions))
	for id, e := range m.sessions {
		out = append(out, Info{
			ID:        id,
			Endpoint:  e.driver.Endpoint(),
			Hostname:  e.driver.Hostname(),
			State:     e.driver.State(),
			CreatedAt: e.createdAt,
			LastUsed:  e.lastUsed,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// SessionCount returns the number of registered sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// NewID returns a fresh session id.
func NewID() string {
	return "sess_" + uuid.New().String()
}
