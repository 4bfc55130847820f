// Package sessions keeps the open interactive search sessions and evicts
// idle ones.
package sessions

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/cliphaven/cliphaven/internal/search"
)

// DefaultIdleTimeout closes sessions that received no input for this long.
const DefaultIdleTimeout = 10 * time.Minute

// ErrNotFound is returned for an unknown or closed session id.
var ErrNotFound = errors.New("search session not found")

// Manager is a thread-safe registry of search sessions.
type Manager struct {
	engine *search.Engine
	idle   time.Duration

	mu       sync.RWMutex
	sessions map[string]*search.Session

	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewManager creates a registry over engine. idle <= 0 uses
// DefaultIdleTimeout.
func NewManager(engine *search.Engine, idle time.Duration) *Manager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Manager{
		engine:   engine,
		idle:     idle,
		sessions: make(map[string]*search.Session),
		doneCh:   make(chan struct{}),
	}
}

// Create opens a session with a fresh id.
func (m *Manager) Create() *search.Session {
	s := m.engine.NewSession(uuid.NewString())
	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()
	log.Debug().Str("session", s.ID()).Int("open", n).Msg("Search session opened")
	return s
}

// Get returns the session by id.
func (m *Manager) Get(id string) (*search.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Delete closes and removes the session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Close()
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle closes sessions idle since before now-idle and returns how many
// were closed.
func (m *Manager) EvictIdle(now time.Time) int {
	cutoff := now.Add(-m.idle)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if m.Delete(id) == nil {
			closed++
		}
	}
	if closed > 0 {
		log.Info().Int("evicted", closed).Str("idle", m.idle.String()).Msg("Evicted idle search sessions")
	}
	return closed
}

// Run evicts idle sessions every interval until Close.
func (m *Manager) Run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.doneCh:
			return
		case now := <-ticker.C:
			m.EvictIdle(now)
		}
	}
}

// Close stops Run and closes every session.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.doneCh) })

	m.mu.Lock()
	open := m.sessions
	m.sessions = make(map[string]*search.Session)
	m.mu.Unlock()
	for _, s := range open {
		s.Close()
	}
}
