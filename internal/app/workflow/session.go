// Package workflow drives the multi-step dashboard operations: code
// verification, meeting and story joins, the progress-tracked download,
// sharing and the simulated login. Each workflow issues commands on the
// store over time and stops dispatching once its context is cancelled.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/coursedash/dashboard/internal/app/bus"
	"github.com/coursedash/dashboard/internal/app/dashboard"
	"github.com/coursedash/dashboard/internal/platform/logfields"
	"github.com/coursedash/dashboard/internal/platform/metrics"
)

var ErrSessionClosed = errors.New("workflow session is closed")

// Outcome labels used in logs and metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Store is the part of the dashboard store the workflows need.
type Store interface {
	Dispatch(cmd bus.Command) (dashboard.Snapshot, error)
	Snapshot() dashboard.Snapshot
}

// Session owns the lifetime of background workflow runs. Close cancels every
// run and waits for them to return. Runs see ErrSessionClosed as the cause of
// that cancellation, whether it came from Close or from the parent context.
type Session struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   func() bool
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewSession(parent context.Context, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancelCause(context.WithoutCancel(parent))
	stop := context.AfterFunc(parent, func() { cancel(ErrSessionClosed) })
	return &Session{ctx: ctx, cancel: cancel, stop: stop, logger: logger}
}

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Go runs fn in its own goroutine with the session context.
func (s *Session) Go(name string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(s.ctx); err != nil && outcomeOf(err) != OutcomeCancelled {
			s.logger.Warn("workflow ended with error", logfields.Workflow(name), logfields.Error(err))
		}
	}()
	return nil
}

// Close cancels all runs and blocks until they return. It is safe to call
// more than once.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.stop()
	s.cancel(ErrSessionClosed)
	s.wg.Wait()
}

// abandoned reports whether ctx was cancelled by its caller rather than by
// session teardown. An abandoned run rolls back the flags it set; a torn down
// one dispatches nothing.
func abandoned(ctx context.Context) bool {
	return ctx.Err() != nil && !errors.Is(context.Cause(ctx), ErrSessionClosed)
}

// rollback dispatches cmd after a run was abandoned. A closed store is not
// an error here.
func rollback(ctx context.Context, store Store, obs observer, cmd bus.Command) {
	if !abandoned(ctx) {
		return
	}
	if _, err := store.Dispatch(cmd); err != nil && !errors.Is(err, bus.ErrStoreClosed) {
		obs.logger.WarnContext(ctx, "roll back abandoned workflow", logfields.Command(cmd.CommandType()), logfields.Error(err))
	}
}

func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

type observer struct {
	workflow string
	logger   *slog.Logger
	metrics  *metrics.Recorder
	clock    clockwork.Clock
}

func newObserver(workflow string, logger *slog.Logger, rec *metrics.Recorder, clock clockwork.Clock) observer {
	if logger == nil {
		logger = slog.Default()
	}
	return observer{workflow: workflow, logger: logger.With(logfields.Workflow(workflow)), metrics: rec, clock: clock}
}

func (o observer) done(ctx context.Context, outcome string, started time.Time, err error) {
	o.metrics.WorkflowOutcome(o.workflow, outcome)
	attrs := []any{logfields.Outcome(outcome), logfields.Duration(o.clock.Since(started))}
	switch {
	case err == nil:
		o.logger.InfoContext(ctx, "workflow finished", attrs...)
	case outcome == OutcomeCancelled:
		o.logger.DebugContext(ctx, "workflow cancelled", attrs...)
	default:
		o.logger.WarnContext(ctx, "workflow finished", append(attrs, logfields.Error(err))...)
	}
}

func outcomeOf(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrSuperseded) {
		return OutcomeCancelled
	}
	return OutcomeFailed
}
