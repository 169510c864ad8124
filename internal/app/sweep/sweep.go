// Package sweep runs the periodic overdue-task reclassification.
package sweep

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/coursedash/dashboard/internal/app/bus"
	"github.com/coursedash/dashboard/internal/domain/tasks"
	"github.com/coursedash/dashboard/internal/platform/logfields"
	"github.com/coursedash/dashboard/internal/platform/metrics"
)

const JobName = "tasks-overdue-sweep"

var ErrStopped = errors.New("sweep scheduler is stopped")

// Dispatcher is the store surface the sweep needs.
type Dispatcher interface {
	Dispatch(cmd bus.Command) error
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(cmd bus.Command) error

func (f DispatchFunc) Dispatch(cmd bus.Command) error { return f(cmd) }

// Scheduler dispatches tasks.MarkOverdue every interval. After Stop no
// further sweep is dispatched, including one from a tick already running.
type Scheduler struct {
	scheduler gocron.Scheduler
	target    Dispatcher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *metrics.Recorder

	mu      sync.Mutex
	stopped bool
}

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.logger = l } }

func WithMetrics(r *metrics.Recorder) Option { return func(s *Scheduler) { s.metrics = r } }

// New creates the scheduler and registers the sweep job. Nothing runs until
// Start.
func New(target Dispatcher, clock clockwork.Clock, interval time.Duration, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	s := &Scheduler{target: target, clock: clock, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.tick),
		gocron.WithName(JobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = scheduler.Shutdown()
		return nil, fmt.Errorf("failed to create sweep job: %w", err)
	}
	s.scheduler = scheduler
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting sweep scheduler", logfields.Job(JobName))
	s.scheduler.Start()
}

// Stop shuts the scheduler down. It is safe to call more than once.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.logger.Info("Stopping sweep scheduler", logfields.Job(JobName))
	return s.scheduler.Shutdown()
}

// RunOnce dispatches one sweep at the clock's current time.
func (s *Scheduler) RunOnce() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if err := s.target.Dispatch(tasks.MarkOverdue{Now: s.clock.Now()}); err != nil {
		return err
	}
	s.metrics.SweepRun()
	return nil
}

func (s *Scheduler) tick() {
	if err := s.RunOnce(); err != nil && !errors.Is(err, ErrStopped) {
		s.logger.Error("Overdue sweep failed", logfields.Job(JobName), logfields.Error(err))
	}
}
