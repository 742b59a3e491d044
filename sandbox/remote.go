package sandbox

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/isdmx/safebox/interp"
	"github.com/isdmx/safebox/metrics"
	"github.com/isdmx/safebox/policy"
	"github.com/isdmx/safebox/result"
)

// Session modes
const (
	SessionModeReuse = "reuse"
	SessionModeFresh = "fresh"
)

// RemoteConfig controls how a RemoteExecutor uses its sessions
type RemoteConfig struct {
	Timeout     time.Duration
	SessionMode string
}

// RemoteExecutor runs submissions as real Python inside isolated
// environments managed by a Manager.
type RemoteExecutor struct {
	logger  *zap.Logger
	policy  *policy.Policy
	manager *Manager
	cfg     RemoteConfig
	metrics *metrics.Collector
	closed  atomic.Bool
}

// NewRemoteExecutor creates a RemoteExecutor
func NewRemoteExecutor(logger *zap.Logger, pol *policy.Policy, manager *Manager, cfg RemoteConfig, collector *metrics.Collector) *RemoteExecutor {
	if pol == nil {
		pol = policy.Default()
	}
	if cfg.SessionMode == "" {
		cfg.SessionMode = SessionModeReuse
	}
	return &RemoteExecutor{
		logger:  logger,
		policy:  pol,
		manager: manager,
		cfg:     cfg,
		metrics: collector,
	}
}

// Manager exposes the session manager
func (e *RemoteExecutor) Manager() *Manager {
	return e.manager
}

func (e *RemoteExecutor) backend() string {
	return e.manager.driver.Name()
}

// Submit runs req in a session. Imports are checked against the policy
// before any environment is touched.
func (e *RemoteExecutor) Submit(ctx context.Context, req Request) (*result.Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	start := time.Now()
	ctx, span := metrics.StartSpan(ctx, "sandbox.submit",
		attribute.String("safebox.backend", e.backend()),
		attribute.String("safebox.session_mode", e.cfg.SessionMode))
	defer span.End()

	e.logger.Info("submission received",
		zap.String("backend", e.backend()),
		zap.Int("code_length", len(req.Code)),
		zap.String("session_key", req.SessionID))

	res, err := e.submit(ctx, req)
	if err != nil {
		// torn down between the closed check and session acquisition
		return nil, err
	}
	res.Backend = e.backend()
	res.Duration = time.Since(start)

	e.metrics.ObserveSubmission(res.Backend, res)
	metrics.EndSpan(span, res)
	if res.Failed() {
		e.logger.Warn("submission failed", zap.Error(res.Err), zap.String("session_id", res.SessionID))
	} else {
		e.logger.Info("submission completed", zap.Duration("elapsed", res.Duration), zap.String("session_id", res.SessionID))
	}
	return res, nil
}

func (e *RemoteExecutor) submit(ctx context.Context, req Request) (*result.Result, error) {
	if rerr := interp.CheckImports(req.Code, e.policy); rerr != nil {
		return result.Failure(e.backend(), rerr), nil
	}

	program, err := WrapProgram(req.Code, req.Variables)
	if err != nil {
		return result.Failure(e.backend(), result.Errorf(result.KindRuntimeEvaluationError, "%v", err)), nil
	}

	var s *Session
	if e.cfg.SessionMode == SessionModeFresh {
		s, err = e.manager.Fresh()
	} else {
		s, err = e.manager.Acquire(req.SessionID)
	}
	if errors.Is(err, ErrClosed) {
		return nil, err
	}
	if err != nil {
		return result.Failure(e.backend(), result.FromError(err)), nil
	}

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	out, err := s.Run(runCtx, program, req.Env)
	if e.cfg.SessionMode == SessionModeFresh {
		if relErr := e.manager.Release(context.WithoutCancel(ctx), s); relErr != nil {
			e.logger.Warn("failed to release one-shot session", zap.String("session_id", s.ID), zap.Error(relErr))
		}
	}

	sessionID := s.ID
	if s.Key != "" {
		sessionID = s.Key
	}
	if err != nil {
		res := result.Failure(e.backend(), e.runError(err))
		res.SessionID = sessionID
		return res, nil
	}

	res := ParseOutput(out, e.policy.MaxOutputBytes())
	res.SessionID = sessionID
	return res, nil
}

func (e *RemoteExecutor) runError(err error) *result.Error {
	var rerr *result.Error
	switch {
	case errors.As(err, &rerr):
		return rerr
	case errors.Is(err, context.DeadlineExceeded):
		return result.Errorf(result.KindSandboxTimeout, "execution exceeded %s", e.cfg.Timeout)
	case errors.Is(err, context.Canceled):
		return result.Errorf(result.KindSandboxTimeout, "execution cancelled")
	case errors.Is(err, errSessionTerminated):
		return result.Errorf(result.KindSandboxProvisionError, "session was terminated before the submission ran")
	default:
		return result.Errorf(result.KindSandboxProvisionError, "%v", err)
	}
}

// CloseSession tears down the session with the given key or id
func (e *RemoteExecutor) CloseSession(ctx context.Context, id string) error {
	return e.manager.Close(ctx, id)
}

// Teardown rejects further submissions and tears every session down
func (e *RemoteExecutor) Teardown(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.logger.Info("tearing down remote executor", zap.String("backend", e.backend()))
	return e.manager.Shutdown(ctx)
}
