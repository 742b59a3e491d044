package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/isdmx/safebox/metrics"
	"github.com/isdmx/safebox/result"
)

// State is the lifecycle state of a Session
type State int

// Session states. A session moves Uninitialized -> Provisioning -> Ready,
// alternates Ready <-> Busy while serving submissions, and ends with
// Terminating -> Terminated.
const (
	StateUninitialized State = iota
	StateProvisioning
	StateReady
	StateBusy
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateProvisioning:
		return "provisioning"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateTerminating:
		return "terminating"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// killTimeout bounds every destroy of a session's environment
const killTimeout = 10 * time.Second

// errSessionTerminated is returned by Run on a session that has ended
var errSessionTerminated = errors.New("session is terminated")

// Session is one remote isolated environment. Submissions to a session run
// one at a time in arrival order.
type Session struct {
	ID  string
	Key string

	driver  Driver
	limits  Limits
	logger  *zap.Logger
	metrics *metrics.Collector
	// throttle is consulted before provisioning
	throttle func(ctx context.Context) error
	// destroyTimeout caps each Destroy call, whatever deadline the caller has
	destroyTimeout time.Duration

	// queue admits one submission at a time; its waiters are served FIFO
	queue *semaphore.Weighted

	mu     sync.Mutex
	state  State
	handle Handle
	uses   int
}

func newSession(id, key string, driver Driver, limits Limits, logger *zap.Logger, collector *metrics.Collector) *Session {
	return &Session{
		ID:      id,
		Key:     key,
		driver:  driver,
		limits:  limits,
		logger:  logger.With(zap.String("session_id", id), zap.String("session_key", key)),
		metrics: collector,
		queue:   semaphore.NewWeighted(1),

		destroyTimeout: killTimeout,
	}
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Uses is the number of submissions the session has served
func (s *Session) Uses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uses
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	s.logger.Debug("session state changed", zap.Stringer("from", prev), zap.Stringer("to", next))
}

// Run waits for its turn, provisions the session on first use and executes
// program. A deadline hit while the program runs kills the environment and
// terminates the session.
func (s *Session) Run(ctx context.Context, program string, env map[string]string) (ExecOutput, error) {
	if err := s.queue.Acquire(ctx, 1); err != nil {
		return ExecOutput{}, err
	}
	defer s.queue.Release(1)

	if err := s.ensureProvisioned(ctx); err != nil {
		return ExecOutput{}, err
	}

	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ExecOutput{}, errSessionTerminated
	}
	s.state = StateBusy
	s.uses++
	handle := s.handle
	s.mu.Unlock()

	out, err := s.driver.Exec(ctx, handle, program, env)
	if err != nil && ctx.Err() != nil {
		s.logger.Warn("submission interrupted, killing session", zap.Error(ctx.Err()))
		_ = s.terminate(context.WithoutCancel(ctx))
		return out, ctx.Err()
	}

	s.mu.Lock()
	if s.state == StateBusy {
		s.state = StateReady
	}
	s.mu.Unlock()
	return out, err
}

func (s *Session) ensureProvisioned(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateUninitialized:
		s.state = StateProvisioning
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		return errSessionTerminated
	}

	ctx, span := metrics.StartSpan(ctx, "sandbox.provision",
		attribute.String("safebox.backend", s.driver.Name()),
		attribute.String("safebox.session_id", s.ID))
	defer span.End()

	if s.throttle != nil {
		if err := s.throttle(ctx); err != nil {
			s.setState(StateTerminated)
			metrics.RecordError(span, err)
			return result.Errorf(result.KindSandboxProvisionError, "provisioning throttled: %v", err)
		}
	}

	s.logger.Info("provisioning session", zap.String("backend", s.driver.Name()))
	start := time.Now()
	handle, err := s.driver.Provision(ctx, s.ID, s.limits)
	s.metrics.ObserveProvision(s.driver.Name(), time.Since(start), err)
	if err != nil {
		s.setState(StateTerminated)
		metrics.RecordError(span, err)
		s.logger.Error("failed to provision session", zap.Error(err))
		return result.Errorf(result.KindSandboxProvisionError, "failed to provision %s sandbox: %v", s.driver.Name(), err)
	}

	s.mu.Lock()
	if s.state != StateProvisioning {
		s.mu.Unlock()
		s.logger.Warn("session torn down while provisioning, releasing environment")
		err := s.destroy(context.WithoutCancel(ctx), handle)
		s.metrics.ObserveTeardown(s.driver.Name(), err)
		s.setState(StateTerminated)
		return errSessionTerminated
	}
	s.handle = handle
	s.state = StateReady
	s.mu.Unlock()
	s.logger.Info("session ready", zap.String("handle", string(handle)), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Teardown releases the environment. It waits for an in-flight submission
// unless ctx ends first, in which case the environment is destroyed under
// it. Tearing down a terminated or never provisioned session is a no-op.
func (s *Session) Teardown(ctx context.Context) error {
	if err := s.queue.Acquire(ctx, 1); err != nil {
		s.logger.Warn("teardown did not wait for the running submission", zap.Error(err))
		return s.terminate(context.WithoutCancel(ctx))
	}
	defer s.queue.Release(1)
	return s.terminate(ctx)
}

func (s *Session) terminate(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateTerminating, StateTerminated:
		s.mu.Unlock()
		return nil
	case StateUninitialized:
		s.state = StateTerminated
		s.mu.Unlock()
		return nil
	case StateProvisioning:
		// the provisioning call releases what it acquires
		s.state = StateTerminating
		s.mu.Unlock()
		return nil
	}
	s.state = StateTerminating
	handle := s.handle
	s.handle = ""
	s.mu.Unlock()

	err := s.destroy(ctx, handle)
	s.metrics.ObserveTeardown(s.driver.Name(), err)
	s.setState(StateTerminated)
	if err != nil {
		s.logger.Error("failed to destroy session", zap.String("handle", string(handle)), zap.Error(err))
		return fmt.Errorf("failed to destroy session %s: %w", s.ID, err)
	}
	s.logger.Info("session terminated", zap.Int("uses", s.Uses()))
	return nil
}

func (s *Session) destroy(ctx context.Context, handle Handle) error {
	ctx, cancel := context.WithTimeout(ctx, s.destroyTimeout)
	defer cancel()
	return s.driver.Destroy(ctx, handle)
}
