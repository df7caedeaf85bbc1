package recording

import (
	"sync"

	"github.com/acolita/termdriver/internal/adapters/realclock"
	"github.com/acolita/termdriver/internal/adapters/realfs"
	"github.com/acolita/termdriver/internal/ports"
)

// Manager owns the recorders of all sessions. A disabled manager hands out
// nothing and all its methods are no-ops.
type Manager struct {
	mu        sync.Mutex
	recorders map[string]*Recorder
	dir       string
	enabled   bool
	fs        ports.FileSystem
	clock     ports.Clock
}

// NewManager creates a recording manager writing into dir. Nil fs or clock
// select the real implementations.
func NewManager(dir string, enabled bool, fs ports.FileSystem, clock ports.Clock) *Manager {
	if fs == nil {
		fs = realfs.New()
	}
	if clock == nil {
		clock = realclock.New()
	}
	return &Manager{
		recorders: make(map[string]*Recorder),
		dir:       dir,
		enabled:   enabled,
		fs:        fs,
		clock:     clock,
	}
}

// Start begins a recording for sessionID, replacing any earlier one. It
// returns nil, nil when recording is disabled.
func (m *Manager) Start(sessionID, title string, width, height int) (*Recorder, error) {
	if !m.enabled {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.recorders[sessionID]; ok {
		existing.Close()
	}
	r, err := NewRecorder(m.dir, sessionID, title, width, height, m.fs, m.clock)
	if err != nil {
		return nil, err
	}
	m.recorders[sessionID] = r
	return r, nil
}

// Stop ends the recording of sessionID.
func (m *Manager) Stop(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.recorders[sessionID]
	if !ok {
		return nil
	}
	delete(m.recorders, sessionID)
	return r.Close()
}

// Path returns the recording file of sessionID, or "".
func (m *Manager) Path(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recorders[sessionID]; ok {
		return r.Path()
	}
	return ""
}

// CloseAll stops every recording.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.recorders {
		r.Close()
		delete(m.recorders, id)
	}
}

// Enabled reports whether recording is on.
func (m *Manager) Enabled() bool {
	return m.enabled
}
