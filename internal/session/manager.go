package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTTL is how long an unused session is kept.
const DefaultIdleTTL = 30 * time.Minute

// Manager keeps one Controller per session id.
type Manager struct {
	newController func() *Controller
	ttl           time.Duration
	log           *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Controller
}

func NewManager(newController func() *Controller, ttl time.Duration, logger *slog.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		newController: newController,
		ttl:           ttl,
		log:           logger,
		sessions:      make(map[string]*Controller),
	}
}

// Get returns the controller for id, creating one when the id is unknown.
// Ids that are not UUIDs are replaced with a fresh one; the id in use is returned.
func (m *Manager) Get(id string) (string, *Controller) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.sessions[id]
	if !ok {
		c = m.newController()
		m.sessions[id] = c
		m.log.Debug("session created", "session", id)
	}
	c.touch()
	return id, c
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict drops sessions unused since now minus the idle TTL. Sessions with an
// operation in flight are kept.
func (m *Manager) Evict(now time.Time) int {
	cutoff := now.Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, c := range m.sessions {
		if c.LastUsed().After(cutoff) {
			continue
		}
		if !c.mu.TryLock() {
			continue
		}
		c.mu.Unlock()
		delete(m.sessions, id)
		n++
		m.log.Debug("session evicted", "session", id)
	}
	return n
}

// Run evicts idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.ttl / 2
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.Evict(now); n > 0 {
				m.log.Info("evicted idle sessions", "count", n, "remaining", m.Len())
			}
		}
	}
}
