package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/coursedash/dashboard/internal/domain/stories"
	"github.com/coursedash/dashboard/internal/platform/metrics"
)

const WorkflowDownload = "download"

var ErrAlreadyDownloading = errors.New("download already in progress")

// Downloader simulates the story collection download: progress grows by
// Step on every Tick, clamped at 100, and the tick after reaching 100
// finishes the download.
type Downloader struct {
	Store   Store
	Clock   clockwork.Clock
	Tick    time.Duration
	Step    int
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	mu      sync.Mutex
	running bool
}

func NewDownloader(store Store, clock clockwork.Clock, tick time.Duration, step int) *Downloader {
	return &Downloader{Store: store, Clock: clock, Tick: tick, Step: step}
}

// Begin resets progress to 0 and marks the collection as downloading.
func (d *Downloader) Begin(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running || d.Store.Snapshot().Stories.Downloading {
		return ErrAlreadyDownloading
	}
	if _, err := d.Store.Dispatch(stories.StartDownload{}); err != nil {
		return err
	}
	d.running = true
	return nil
}

// Run ticks until the download finishes or ctx is cancelled. A download the
// caller abandons is reset; one stopped by session teardown dispatches
// nothing further.
func (d *Downloader) Run(ctx context.Context) error {
	started := d.Clock.Now()
	obs := newObserver(WorkflowDownload, d.Logger, d.Metrics, d.Clock)
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	step := max(d.Step, 1)
	ticker := d.Clock.NewTicker(d.Tick)
	defer ticker.Stop()

	progress := 0
	for {
		select {
		case <-ctx.Done():
			rollback(ctx, d.Store, obs, stories.CancelDownload{})
			obs.done(ctx, OutcomeCancelled, started, ctx.Err())
			return ctx.Err()
		case <-ticker.Chan():
		}
		if ctx.Err() != nil {
			continue
		}
		if progress >= 100 {
			if _, err := d.Store.Dispatch(stories.FinishDownload{}); err != nil {
				obs.done(ctx, outcomeOf(err), started, err)
				return err
			}
			obs.done(ctx, OutcomeSuccess, started, nil)
			return nil
		}
		progress = min(progress+step, 100)
		if _, err := d.Store.Dispatch(stories.UpdateDownloadProgress{Progress: progress}); err != nil {
			obs.done(ctx, outcomeOf(err), started, err)
			return err
		}
	}
}

// Start runs Begin and Run in the caller's goroutine.
func (d *Downloader) Start(ctx context.Context) error {
	if err := d.Begin(ctx); err != nil {
		return err
	}
	return d.Run(ctx)
}
