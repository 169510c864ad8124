package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/coursedash/dashboard/internal/domain/stories"
	"github.com/coursedash/dashboard/internal/platform/external"
	"github.com/coursedash/dashboard/internal/platform/logfields"
	"github.com/coursedash/dashboard/internal/platform/metrics"
)

const (
	WorkflowStoryJoin = "story_join"
	WorkflowShare     = "share"
)

// StoryJoiner joins the story-book session after a fixed delay.
type StoryJoiner struct {
	Store   Store
	Clock   clockwork.Clock
	Delay   time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	mu      sync.Mutex
	joining bool
}

func NewStoryJoiner(store Store, clock clockwork.Clock, delay time.Duration) *StoryJoiner {
	return &StoryJoiner{Store: store, Clock: clock, Delay: delay}
}

func (j *StoryJoiner) Begin(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.joining || j.Store.Snapshot().Stories.Joining {
		return ErrAlreadyJoining
	}
	if _, err := j.Store.Dispatch(stories.StartJoining{}); err != nil {
		return err
	}
	j.joining = true
	return nil
}

func (j *StoryJoiner) Complete(ctx context.Context) error {
	started := j.Clock.Now()
	obs := newObserver(WorkflowStoryJoin, j.Logger, j.Metrics, j.Clock)
	defer func() {
		j.mu.Lock()
		j.joining = false
		j.mu.Unlock()
	}()
	if err := sleep(ctx, j.Clock, j.Delay); err != nil {
		rollback(ctx, j.Store, obs, stories.CancelJoining{})
		obs.done(ctx, OutcomeCancelled, started, err)
		return err
	}
	if _, err := j.Store.Dispatch(stories.FinishJoining{}); err != nil {
		obs.done(ctx, outcomeOf(err), started, err)
		return err
	}
	obs.done(ctx, OutcomeSuccess, started, nil)
	return nil
}

func (j *StoryJoiner) Join(ctx context.Context) error {
	if err := j.Begin(ctx); err != nil {
		return err
	}
	return j.Complete(ctx)
}

type ShareMethod string

const (
	SharedNatively ShareMethod = "share"
	CopiedLink     ShareMethod = "clipboard"
)

// Sharer shares a payload, copying its URL to the clipboard when no share
// target exists. It never touches the store.
type Sharer struct {
	Service   external.ShareService
	Clipboard external.Clipboard
	Logger    *slog.Logger
}

func (s *Sharer) Share(ctx context.Context, payload external.SharePayload) (ShareMethod, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(logfields.Workflow(WorkflowShare))

	err := s.Service.Share(ctx, payload)
	switch {
	case err == nil:
		return SharedNatively, nil
	case !errors.Is(err, external.ErrShareUnsupported):
		logger.WarnContext(ctx, "share failed", logfields.URL(payload.URL), logfields.Error(err))
		return "", fmt.Errorf("share: %w", err)
	}

	if err := s.Clipboard.Copy(ctx, payload.URL); err != nil {
		logger.WarnContext(ctx, "copy share link failed", logfields.URL(payload.URL), logfields.Error(err))
		return "", fmt.Errorf("copy share link: %w", err)
	}
	logger.InfoContext(ctx, "link copied to clipboard", logfields.URL(payload.URL))
	return CopiedLink, nil
}
