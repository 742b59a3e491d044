package sandbox

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/isdmx/safebox/metrics"
	"github.com/isdmx/safebox/result"
)

// ManagerConfig bounds how many sessions exist and how fast they are created
type ManagerConfig struct {
	Limits Limits
	// MaxSessions caps live sessions; zero means unlimited
	MaxSessions int
	// ProvisionRate is the sustained provisions per second; zero disables
	// throttling
	ProvisionRate  float64
	ProvisionBurst int
}

// Manager owns the sessions of one driver. Reusable sessions are keyed by
// the caller's session key; one-shot sessions are tracked by id until
// released.
type Manager struct {
	logger  *zap.Logger
	driver  Driver
	cfg     ManagerConfig
	metrics *metrics.Collector
	limiter *rate.Limiter

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
	oneShot  map[string]*Session
}

// NewManager creates a Manager for driver
func NewManager(logger *zap.Logger, driver Driver, cfg ManagerConfig, collector *metrics.Collector) *Manager {
	limit := rate.Inf
	burst := cfg.ProvisionBurst
	if cfg.ProvisionRate > 0 {
		limit = rate.Limit(cfg.ProvisionRate)
		if burst < 1 {
			burst = 1
		}
	}
	return &Manager{
		logger:   logger.With(zap.String("backend", driver.Name())),
		driver:   driver,
		cfg:      cfg,
		metrics:  collector,
		limiter:  rate.NewLimiter(limit, burst),
		sessions: make(map[string]*Session),
		oneShot:  make(map[string]*Session),
	}
}

// Acquire returns the session for key, creating it when none exists or the
// previous one has terminated. The session provisions on its first Run.
func (m *Manager) Acquire(key string) (*Session, error) {
	if key == "" {
		key = DefaultSessionKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	if s, ok := m.sessions[key]; ok {
		if s.State() != StateTerminated {
			return s, nil
		}
		delete(m.sessions, key)
	}
	m.pruneLocked()
	if err := m.checkCapacityLocked(); err != nil {
		return nil, err
	}

	s := m.newSessionLocked(key)
	m.sessions[key] = s
	return s, nil
}

// Fresh creates a session that serves a single submission and must be
// handed back with Release.
func (m *Manager) Fresh() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	m.pruneLocked()
	if err := m.checkCapacityLocked(); err != nil {
		return nil, err
	}
	s := m.newSessionLocked("")
	m.oneShot[s.ID] = s
	return s, nil
}

// Release tears down a session obtained from Fresh
func (m *Manager) Release(ctx context.Context, s *Session) error {
	m.mu.Lock()
	delete(m.oneShot, s.ID)
	m.mu.Unlock()
	return s.Teardown(ctx)
}

// Close tears down the session registered under key, or with that session
// id. Closing an unknown session is a no-op.
func (m *Manager) Close(ctx context.Context, key string) error {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	} else {
		for k, candidate := range m.sessions {
			if candidate.ID == key {
				s, ok = candidate, true
				delete(m.sessions, k)
				break
			}
		}
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug("close of unknown session ignored", zap.String("session", key))
		return nil
	}
	return s.Teardown(ctx)
}

// Shutdown tears down every session concurrently and reports the first
// failure. Sessions that fail to tear down are still forgotten. Acquire and
// Fresh return ErrClosed afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	all := make([]*Session, 0, len(m.sessions)+len(m.oneShot))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	for _, s := range m.oneShot {
		all = append(all, s)
	}
	m.sessions = make(map[string]*Session)
	m.oneShot = make(map[string]*Session)
	m.mu.Unlock()

	m.logger.Info("shutting down sessions", zap.Int("count", len(all)))
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range all {
		g.Go(func() error {
			return s.Teardown(gctx)
		})
	}
	return g.Wait()
}

// Len is the number of sessions that have not terminated
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	return len(m.sessions) + len(m.oneShot)
}

func (m *Manager) pruneLocked() {
	for k, s := range m.sessions {
		if s.State() == StateTerminated {
			delete(m.sessions, k)
		}
	}
	for id, s := range m.oneShot {
		if s.State() == StateTerminated {
			delete(m.oneShot, id)
		}
	}
}

func (m *Manager) checkCapacityLocked() error {
	if m.cfg.MaxSessions > 0 && len(m.sessions)+len(m.oneShot) >= m.cfg.MaxSessions {
		m.logger.Warn("session limit reached", zap.Int("max_sessions", m.cfg.MaxSessions))
		return result.Errorf(result.KindSandboxProvisionError, "session limit of %d reached", m.cfg.MaxSessions)
	}
	return nil
}

func (m *Manager) newSessionLocked(key string) *Session {
	id := uuid.NewString()
	s := newSession(id, key, m.driver, m.cfg.Limits, m.logger, m.metrics)
	s.throttle = m.limiter.Wait
	return s
}
