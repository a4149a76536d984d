package session

import (
	"context"
	"sync"
	"time"

	"eikona/internal/domain"
	"eikona/internal/editor/region"
	"eikona/internal/infra"
)

// Manager owns the live sessions and evicts the ones nobody has touched
// within the TTL.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	res        *region.Resolver
	targetLong int
	maxLong    int
	ttl        time.Duration
	log        infra.Logger
}

// NewManager builds a session manager. A non-positive ttl disables eviction.
func NewManager(res *region.Resolver, targetLong, maxLong int, ttl time.Duration, log infra.Logger) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		res:        res,
		targetLong: targetLong,
		maxLong:    maxLong,
		ttl:        ttl,
		log:        log,
	}
}

// Create opens a session around the uploaded image bytes.
func (m *Manager) Create(data []byte) (*Session, error) {
	s := newSession(m.res, m.targetLong, m.maxLong)
	if err := s.LoadBase(data); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep runs TTL eviction until ctx is cancelled. Intended to run in its own
// goroutine from main.
func (m *Manager) Sweep(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	interval := m.ttl / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *Manager) evictExpired() {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastAccess().Before(cutoff) {
			delete(m.sessions, id)
			m.log.Info().Str("session_id", id).Msg("session expired")
		}
	}
	m.mu.Unlock()
}
