// Package core assembles the store, its observers, the overdue sweep and the
// workflows into one running dashboard.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursedash/dashboard/internal/app/bus"
	"github.com/coursedash/dashboard/internal/app/dashboard"
	"github.com/coursedash/dashboard/internal/app/dashboardapi"
	"github.com/coursedash/dashboard/internal/app/mirror"
	"github.com/coursedash/dashboard/internal/app/sweep"
	"github.com/coursedash/dashboard/internal/app/workflow"
	"github.com/coursedash/dashboard/internal/domain/courses"
	"github.com/coursedash/dashboard/internal/platform/apperr"
	"github.com/coursedash/dashboard/internal/platform/config"
	"github.com/coursedash/dashboard/internal/platform/external"
	"github.com/coursedash/dashboard/internal/platform/logfields"
	"github.com/coursedash/dashboard/internal/platform/metrics"
)

// Options are the collaborators New does not build from Config. Zero values
// get working defaults.
type Options struct {
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Registry *prom.Registry
	// Seed replaces the embedded seed document.
	Seed io.Reader
	// Publish enables the event mirror.
	Publish    mirror.PublishFunc
	Opener     external.LinkOpener
	Clipboard  external.Clipboard
	Share      external.ShareService
	Decide     workflow.Decider
	BcryptCost int
}

type App struct {
	Config    config.Config
	Store     *dashboard.Store
	Session   *workflow.Session
	Sweeper   *sweep.Scheduler
	Workflows dashboardapi.Workflows
	Mirror    *mirror.Service
	Registry  *prom.Registry
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = metrics.NewRegistry()
	}
	if opts.Opener == nil {
		opts.Opener = external.LogOpener{Logger: opts.Logger}
	}
	if opts.Clipboard == nil {
		opts.Clipboard = external.LogClipboard{Logger: opts.Logger}
	}
	if opts.Share == nil {
		opts.Share = external.NoShare{}
	}
	if opts.Decide == nil {
		now := uint64(opts.Clock.Now().UnixNano())
		opts.Decide = workflow.RandomDecider(cfg.VerifySuccessRate, rand.New(rand.NewPCG(now, now>>7)))
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	scope := courses.ScopeCourse
	if cfg.LegacyGlobalLevels {
		scope = courses.ScopeGlobal
	}
	initial, err := loadInitial(opts.Seed, opts.Clock.Now().UTC(), scope)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	recorder := metrics.NewRecorder(opts.Registry)
	app := &App{Config: cfg, Registry: opts.Registry, Metrics: recorder, Logger: logger}

	storeOpts := []bus.Option{
		bus.WithNow(opts.Clock.Now),
		bus.WithObserver(func(a bus.Applied) {
			recorder.CommandApplied(a.Partition, a.Command.CommandType(), a.Version, a.Elapsed)
			logger.Debug("command applied",
				logfields.Command(a.Command.CommandType()),
				logfields.Partition(a.Partition),
				logfields.Version(a.Version),
				logfields.Duration(a.Elapsed))
		}),
		bus.WithRejectObserver(func(r bus.Rejected) {
			category := apperr.CategoryOf(r.Err)
			if errors.Is(r.Err, bus.ErrStoreClosed) {
				category = "closed"
			}
			recorder.CommandRejected(string(category))
			commandType := "<nil>"
			if r.Command != nil {
				commandType = r.Command.CommandType()
			}
			logger.Warn("command rejected", logfields.Command(commandType), logfields.Error(r.Err))
		}),
	}
	if opts.Publish != nil {
		app.Mirror = mirror.NewService(opts.Publish, func(cmd bus.Command) error {
			_, err := app.Store.Dispatch(cmd)
			return err
		})
		app.Mirror.Logger = logger
		app.Mirror.Metrics = recorder
		storeOpts = append(storeOpts, bus.WithObserver(app.Mirror.Observe))
	}

	store, err := dashboard.NewStore(initial, storeOpts...)
	if err != nil {
		return nil, err
	}
	app.Store = store

	sweeper, err := sweep.New(sweep.DispatchFunc(func(cmd bus.Command) error {
		_, err := store.Dispatch(cmd)
		return err
	}), opts.Clock, cfg.SweepInterval, sweep.WithLogger(logger), sweep.WithMetrics(recorder))
	if err != nil {
		store.Close()
		return nil, err
	}
	app.Sweeper = sweeper

	var accounts []workflow.Account
	if p := initial.Auth.Profile; p != nil && p.Email != "" {
		account, err := workflow.NewAccount(*p, cfg.DemoPassword, opts.BcryptCost)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("demo account: %w", err)
		}
		accounts = append(accounts, account)
	}

	app.Session = workflow.NewSession(ctx, logger)
	app.Workflows = dashboardapi.Workflows{
		Session:    app.Session,
		Verifier:   workflow.NewVerifier(store, opts.Clock, cfg.VerifyDelay, opts.Decide),
		Meeting:    workflow.NewMeetingJoiner(store, opts.Clock, cfg.JoinDelay, opts.Opener, opts.Clipboard),
		Stories:    workflow.NewStoryJoiner(store, opts.Clock, cfg.StoryJoinDelay),
		Downloader: workflow.NewDownloader(store, opts.Clock, cfg.DownloadTick, cfg.DownloadStep),
		Sharer:     &workflow.Sharer{Service: opts.Share, Clipboard: opts.Clipboard, Logger: logger},
		Auth:       workflow.NewAuthenticator(store, opts.Clock, accounts...),
	}
	app.Workflows.Verifier.Logger, app.Workflows.Verifier.Metrics = logger, recorder
	app.Workflows.Meeting.Logger, app.Workflows.Meeting.Metrics = logger, recorder
	app.Workflows.Stories.Logger, app.Workflows.Stories.Metrics = logger, recorder
	app.Workflows.Downloader.Logger, app.Workflows.Downloader.Metrics = logger, recorder
	app.Workflows.Auth.Logger, app.Workflows.Auth.Metrics = logger, recorder
	return app, nil
}

func loadInitial(seed io.Reader, now time.Time, scope courses.LevelScope) (dashboard.Snapshot, error) {
	if seed == nil {
		return dashboard.DefaultSnapshot(now, scope)
	}
	return dashboard.LoadSeed(seed, now, scope)
}

// Start runs one sweep immediately and then schedules the rest.
func (a *App) Start() {
	if err := a.Sweeper.RunOnce(); err != nil {
		a.Logger.Warn("initial overdue sweep failed", logfields.Error(err))
	}
	a.Sweeper.Start()
}

// Handler is the HTTP surface of the app.
func (a *App) Handler() *dashboardapi.Handler {
	h := dashboardapi.NewHandler(a.Store, a.Workflows, metrics.Handler(a.Registry), a.Config.AllowedOrigin)
	h.Logger = a.Logger
	return h
}

// Close stops the sweep, cancels running workflows and disposes the store.
// Nothing is dispatched after it returns.
func (a *App) Close() error {
	err := a.Sweeper.Stop()
	a.Session.Close()
	a.Store.Close()
	if errors.Is(err, sweep.ErrStopped) {
		return nil
	}
	return err
}
