package sandbox

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/isdmx/safebox/interp"
	"github.com/isdmx/safebox/metrics"
	"github.com/isdmx/safebox/result"
)

// LocalExecutor evaluates submissions in process with the restricted
// evaluator. It holds no sessions.
type LocalExecutor struct {
	logger    *zap.Logger
	evaluator *interp.Evaluator
	timeout   time.Duration
	metrics   *metrics.Collector
	closed    atomic.Bool
}

// NewLocalExecutor creates a LocalExecutor. A zero timeout leaves the
// operation budget as the only bound.
func NewLocalExecutor(logger *zap.Logger, evaluator *interp.Evaluator, timeout time.Duration, collector *metrics.Collector) *LocalExecutor {
	if evaluator == nil {
		evaluator = interp.New(nil)
	}
	return &LocalExecutor{
		logger:    logger,
		evaluator: evaluator,
		timeout:   timeout,
		metrics:   collector,
	}
}

// Submit evaluates req.Code
func (e *LocalExecutor) Submit(ctx context.Context, req Request) (*result.Result, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	ctx, span := metrics.StartSpan(ctx, "sandbox.submit", attribute.String("safebox.backend", BackendLocal))
	defer span.End()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Debug("evaluating submission", zap.Int("code_length", len(req.Code)))
	res := e.evaluator.Run(ctx, interp.Input{
		Code:      req.Code,
		Variables: req.Variables,
		Env:       req.Env,
	})
	res.Backend = BackendLocal

	e.metrics.ObserveSubmission(BackendLocal, res)
	metrics.EndSpan(span, res)
	if res.Failed() {
		e.logger.Info("submission failed",
			zap.Error(res.Err),
			zap.Int64("operations", res.Operations))
	} else {
		e.logger.Debug("submission completed",
			zap.Int64("operations", res.Operations),
			zap.Duration("elapsed", res.Duration))
	}
	return res, nil
}

// CloseSession is a no-op; local evaluation keeps no state between
// submissions.
func (*LocalExecutor) CloseSession(context.Context, string) error {
	return nil
}

// Teardown rejects further submissions
func (e *LocalExecutor) Teardown(context.Context) error {
	e.closed.Store(true)
	return nil
}
