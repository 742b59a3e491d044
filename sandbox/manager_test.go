package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/safebox/metrics"
	"github.com/isdmx/safebox/result"
)

func newTestManager(t *testing.T, d Driver, cfg ManagerConfig) *Manager {
	cfg.Limits = DefaultLimits()
	return NewManager(zaptest.NewLogger(t), d, cfg, nil)
}

func TestManagerAcquire(t *testing.T) {
	m := newTestManager(t, &fakeDriver{}, ManagerConfig{})

	a1, err := m.Acquire("a")
	require.NoError(t, err)
	a2, err := m.Acquire("a")
	require.NoError(t, err)
	b, err := m.Acquire("b")
	require.NoError(t, err)
	def, err := m.Acquire("")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotEqual(t, a1.ID, b.ID)
	assert.Equal(t, DefaultSessionKey, def.Key)
	assert.Equal(t, 3, m.Len())
}

func TestManagerMaxSessions(t *testing.T) {
	m := newTestManager(t, &fakeDriver{}, ManagerConfig{MaxSessions: 2})

	_, err := m.Acquire("a")
	require.NoError(t, err)
	_, err = m.Fresh()
	require.NoError(t, err)

	_, err = m.Acquire("b")
	require.Error(t, err)
	assert.Equal(t, result.KindSandboxProvisionError, result.KindOf(err))

	// an existing key is still served at capacity
	_, err = m.Acquire("a")
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background(), "a"))
	_, err = m.Acquire("b")
	require.NoError(t, err)
}

func TestManagerReplacesTerminatedSession(t *testing.T) {
	d := &fakeDriver{exec: blockUntilDone}
	m := newTestManager(t, d, ManagerConfig{})

	first, err := m.Acquire("k")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = first.Run(ctx, "spin", nil)
	require.Error(t, err)
	require.Equal(t, StateTerminated, first.State())

	second, err := m.Acquire("k")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StateUninitialized, second.State())
}

func TestManagerClose(t *testing.T) {
	d := &fakeDriver{}
	m := newTestManager(t, d, ManagerConfig{})

	s, err := m.Acquire("k")
	require.NoError(t, err)
	_, err = s.Run(context.Background(), "x", nil)
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background(), "unknown"))
	require.NoError(t, m.Close(context.Background(), s.ID))
	assert.Equal(t, StateTerminated, s.State())
	assert.Zero(t, m.Len())

	require.NoError(t, m.Close(context.Background(), "k"))
	_, destroys := d.counts()
	assert.Equal(t, 1, destroys)
}

func TestManagerFreshRelease(t *testing.T) {
	d := &fakeDriver{}
	m := newTestManager(t, d, ManagerConfig{})

	s, err := m.Fresh()
	require.NoError(t, err)
	assert.Empty(t, s.Key)
	assert.Equal(t, 1, m.Len())

	_, err = s.Run(context.Background(), "x", nil)
	require.NoError(t, err)
	require.NoError(t, m.Release(context.Background(), s))

	assert.Zero(t, m.Len())
	provisions, destroys := d.counts()
	assert.Equal(t, 1, provisions)
	assert.Equal(t, 1, destroys)
}

func TestManagerShutdown(t *testing.T) {
	d := &fakeDriver{}
	reg := prometheus.NewRegistry()
	m := NewManager(zaptest.NewLogger(t), d, ManagerConfig{Limits: DefaultLimits()}, metrics.NewCollector(reg))

	for _, key := range []string{"a", "b", "c"} {
		s, err := m.Acquire(key)
		require.NoError(t, err)
		_, err = s.Run(context.Background(), "x", nil)
		require.NoError(t, err)
	}
	idle, err := m.Acquire("never-used")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Zero(t, m.Len())
	assert.Equal(t, StateTerminated, idle.State())

	provisions, destroys := d.counts()
	assert.Equal(t, 3, provisions)
	assert.Equal(t, 3, destroys)

	count, err := testutil.GatherAndCount(reg, "safebox_session_teardowns_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManagerProvisionThrottle(t *testing.T) {
	d := &fakeDriver{}
	m := newTestManager(t, d, ManagerConfig{ProvisionRate: 0.001, ProvisionBurst: 1})

	s1, err := m.Acquire("a")
	require.NoError(t, err)
	_, err = s1.Run(context.Background(), "x", nil)
	require.NoError(t, err)

	s2, err := m.Acquire("b")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s2.Run(ctx, "x", nil)
	require.Error(t, err)
	assert.Equal(t, result.KindSandboxProvisionError, result.KindOf(err))

	provisions, _ := d.counts()
	assert.Equal(t, 1, provisions)
}

func TestManagerAfterShutdown(t *testing.T) {
	tests := []struct {
		name    string
		session func(m *Manager) (*Session, error)
	}{
		{name: "Acquire", session: func(m *Manager) (*Session, error) { return m.Acquire("late") }},
		{name: "AcquireExistingKey", session: func(m *Manager) (*Session, error) { return m.Acquire("a") }},
		{name: "Fresh", session: func(m *Manager) (*Session, error) { return m.Fresh() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDriver{}
			m := newTestManager(t, d, ManagerConfig{})
			_, err := m.Acquire("a")
			require.NoError(t, err)
			require.NoError(t, m.Shutdown(context.Background()))

			s, err := tt.session(m)
			require.ErrorIs(t, err, ErrClosed)
			assert.Nil(t, s)
			assert.Zero(t, m.Len())

			provisions, _ := d.counts()
			assert.Zero(t, provisions)
		})
	}
}
