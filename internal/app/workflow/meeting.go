package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/coursedash/dashboard/internal/domain/meetings"
	"github.com/coursedash/dashboard/internal/platform/external"
	"github.com/coursedash/dashboard/internal/platform/logfields"
	"github.com/coursedash/dashboard/internal/platform/metrics"
)

const WorkflowMeetingJoin = "meeting_join"

var (
	ErrAlreadyJoining = errors.New("join already in progress")
	ErrNoMeetingLink  = errors.New("meeting has no join link")
	ErrNoSchedule     = errors.New("meeting date or schedule cannot be parsed")
)

const (
	meetingDateLayout = "January 2, 2006"
	calendarLayout    = "20060102T150405Z"
	calendarBaseURL   = "https://calendar.google.com/calendar/render"
)

// MeetingJoiner runs Idle, Joining, Joined for the current meeting and then
// opens its link.
type MeetingJoiner struct {
	Store     Store
	Clock     clockwork.Clock
	Delay     time.Duration
	Opener    external.LinkOpener
	Clipboard external.Clipboard
	Logger    *slog.Logger
	Metrics   *metrics.Recorder

	mu      sync.Mutex
	joining bool
}

func NewMeetingJoiner(store Store, clock clockwork.Clock, delay time.Duration, opener external.LinkOpener, clipboard external.Clipboard) *MeetingJoiner {
	return &MeetingJoiner{Store: store, Clock: clock, Delay: delay, Opener: opener, Clipboard: clipboard}
}

// JoinURL is the absolute link for a meeting.
func JoinURL(m meetings.Meeting) string {
	return "https://" + strings.TrimPrefix(m.Link, "https://")
}

// Begin marks the current meeting as joining. A second Begin before the
// first completes returns ErrAlreadyJoining.
func (j *MeetingJoiner) Begin(ctx context.Context) (meetings.Meeting, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	current := j.Store.Snapshot().Meetings.Current
	if j.joining || current.Joining {
		return meetings.Meeting{}, ErrAlreadyJoining
	}
	if _, err := j.Store.Dispatch(meetings.StartJoining{MeetingID: current.ID}); err != nil {
		return meetings.Meeting{}, err
	}
	j.joining = true
	return current, nil
}

// Complete waits out the join delay, clears the joining flag and opens the
// meeting link. A caller that cancels before the delay ends gets the flag
// cleared without the link being opened; session teardown dispatches
// nothing. Opener failures are logged only.
func (j *MeetingJoiner) Complete(ctx context.Context, m meetings.Meeting) error {
	started := j.Clock.Now()
	obs := newObserver(WorkflowMeetingJoin, j.Logger, j.Metrics, j.Clock)
	defer func() {
		j.mu.Lock()
		j.joining = false
		j.mu.Unlock()
	}()

	if err := sleep(ctx, j.Clock, j.Delay); err != nil {
		rollback(ctx, j.Store, obs, meetings.CancelJoining{MeetingID: m.ID})
		obs.done(ctx, OutcomeCancelled, started, err)
		return err
	}
	if _, err := j.Store.Dispatch(meetings.FinishJoining{MeetingID: m.ID}); err != nil {
		obs.done(ctx, outcomeOf(err), started, err)
		return err
	}
	link := JoinURL(m)
	if err := j.Opener.Open(ctx, link); err != nil {
		obs.logger.WarnContext(ctx, "open meeting link", logfields.URL(link), logfields.Error(err))
	}
	obs.done(ctx, OutcomeSuccess, started, nil)
	return nil
}

// Join runs Begin and Complete in the caller's goroutine.
func (j *MeetingJoiner) Join(ctx context.Context) error {
	m, err := j.Begin(ctx)
	if err != nil {
		return err
	}
	return j.Complete(ctx, m)
}

// CopyLink puts the current meeting's join link on the clipboard.
func (j *MeetingJoiner) CopyLink(ctx context.Context) (string, error) {
	current := j.Store.Snapshot().Meetings.Current
	if strings.TrimSpace(current.Link) == "" {
		return "", ErrNoMeetingLink
	}
	link := JoinURL(current)
	if err := j.Clipboard.Copy(ctx, link); err != nil {
		return "", fmt.Errorf("copy meeting link: %w", err)
	}
	return link, nil
}

// AddToCalendar opens a calendar template for the current meeting and
// returns its URL.
func (j *MeetingJoiner) AddToCalendar(ctx context.Context) (string, error) {
	link, err := CalendarURL(j.Store.Snapshot().Meetings.Current)
	if err != nil {
		return "", err
	}
	if err := j.Opener.Open(ctx, link); err != nil {
		return "", fmt.Errorf("open calendar: %w", err)
	}
	return link, nil
}

// CalendarURL builds a Google Calendar event template from the meeting date
// ("July 24, 2024") and schedule ("09:00-10:00").
func CalendarURL(m meetings.Meeting) (string, error) {
	day, err := time.Parse(meetingDateLayout, strings.TrimSpace(m.Date))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSchedule, err)
	}
	from, to, ok := strings.Cut(m.Schedule, "-")
	if !ok {
		return "", ErrNoSchedule
	}
	start, err := clockOn(day, from)
	if err != nil {
		return "", err
	}
	end, err := clockOn(day, to)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", m.Title+" Meeting")
	q.Set("dates", start.Format(calendarLayout)+"/"+end.Format(calendarLayout))
	q.Set("details", "Join at "+JoinURL(m))
	return calendarBaseURL + "?" + q.Encode(), nil
}

func clockOn(day time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoSchedule, err)
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
}
