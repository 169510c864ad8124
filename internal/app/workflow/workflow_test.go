package workflow

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursedash/dashboard/internal/app/dashboard"
	"github.com/coursedash/dashboard/internal/domain/auth"
	"github.com/coursedash/dashboard/internal/domain/courses"
	"github.com/coursedash/dashboard/internal/domain/stories"
	"github.com/coursedash/dashboard/internal/platform/apperr"
	"github.com/coursedash/dashboard/internal/platform/external"
)

var seedTime = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *dashboard.Store {
	t.Helper()
	store, err := dashboard.NewStore(dashboard.MustDefaultSnapshot(seedTime))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func fillForm(t *testing.T, store *dashboard.Store, name, secret, code string) {
	t.Helper()
	for _, cmd := range []courses.Command{
		courses.SetCreationField{Field: courses.FieldName, Value: name},
		courses.SetCreationField{Field: courses.FieldSecret, Value: secret},
	} {
		_, err := store.Dispatch(cmd)
		require.NoError(t, err)
	}
	for i, r := range code {
		_, err := store.Dispatch(courses.SetVerificationDigit{Index: i, Value: string(r)})
		require.NoError(t, err)
	}
}

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
	err  error
}

func (o *recordingOpener) Open(_ context.Context, url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return o.err
}

func (o *recordingOpener) opened() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

type recordingClipboard struct {
	mu    sync.Mutex
	texts []string
}

func (c *recordingClipboard) Copy(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func TestVerifier_ValidationFailure(t *testing.T) {
	store := newStore(t)
	fillForm(t, store, "", "abc", "12")
	v := NewVerifier(store, clockwork.NewFakeClock(), 2*time.Second, AlwaysAccept)

	err := v.Submit(testContext(t))

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, map[string]string{
		courses.FieldName:   MsgNameRequired,
		courses.FieldSecret: MsgSecretTooShort,
		courses.FieldCode:   MsgCodeIncomplete,
	}, verr.Fields)

	creation := store.Snapshot().Courses.Creation
	require.Equal(t, courses.StatusError, creation.Status)
	require.False(t, creation.Verifying)
	require.Equal(t, verr.Fields, creation.Errors)
}

func TestVerifier_MissingSecret(t *testing.T) {
	store := newStore(t)
	fillForm(t, store, "Filmmaker", "", "123456")
	v := NewVerifier(store, clockwork.NewFakeClock(), 0, AlwaysAccept)

	var verr *apperr.ValidationError
	require.ErrorAs(t, v.Submit(testContext(t)), &verr)
	require.Equal(t, map[string]string{courses.FieldSecret: MsgSecretRequired}, verr.Fields)
}

func TestVerifier_Success(t *testing.T) {
	ctx := testContext(t)
	store := newStore(t)
	fillForm(t, store, "Filmmaker", "hunter22", "123456")
	clock := clockwork.NewFakeClock()
	v := NewVerifier(store, clock, 2*time.Second, AlwaysAccept)

	done := make(chan error, 1)
	go func() { done <- v.Submit(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.Equal(t, courses.StatusPending, store.Snapshot().Courses.Creation.Status)
	require.ErrorIs(t, v.Submit(ctx), ErrInFlight)

	clock.Advance(2 * time.Second)
	require.NoError(t, <-done)

	creation := store.Snapshot().Courses.Creation
	require.Equal(t, courses.StatusSuccess, creation.Status)
	require.Empty(t, creation.Errors)
	require.False(t, creation.Verifying)
}

func TestVerifier_Failures(t *testing.T) {
	cases := []struct {
		name    string
		decide  error
		field   string
		message string
	}{
		{"rejected code", ErrCodeRejected, courses.FieldCode, MsgCodeRejected},
		{"backend error", errors.New("timeout"), courses.FieldGeneral, MsgGeneralFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			fillForm(t, store, "Filmmaker", "hunter22", "123456")
			v := NewVerifier(store, clockwork.NewFakeClock(), 0, func(context.Context, Request) error { return tc.decide })

			err := v.Submit(testContext(t))

			var failure *apperr.WorkflowFailure
			require.ErrorAs(t, err, &failure)
			require.Equal(t, tc.message, failure.Message)
			require.ErrorIs(t, err, tc.decide)

			creation := store.Snapshot().Courses.Creation
			require.Equal(t, courses.StatusError, creation.Status)
			require.Equal(t, map[string]string{tc.field: tc.message}, creation.Errors)

			require.NoError(t, v.Resend(testContext(t)))
			creation = store.Snapshot().Courses.Creation
			require.Equal(t, courses.StatusIdle, creation.Status)
			require.Empty(t, creation.Errors)
			require.Empty(t, creation.CodeString())
		})
	}
}

func TestVerifier_CancelDispatchesNothingMore(t *testing.T) {
	store := newStore(t)
	fillForm(t, store, "Filmmaker", "hunter22", "123456")
	clock := clockwork.NewFakeClock()
	decided := false
	v := NewVerifier(store, clock, 2*time.Second, func(context.Context, Request) error {
		decided = true
		return nil
	})

	ctx, cancel := context.WithCancel(testContext(t))
	done := make(chan error, 1)
	go func() { done <- v.Submit(ctx) }()
	require.NoError(t, clock.BlockUntilContext(testContext(t), 1))
	version := store.Version()

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	clock.Advance(time.Minute)

	require.Equal(t, version, store.Version())
	require.False(t, decided)
	require.Equal(t, courses.StatusPending, store.Snapshot().Courses.Creation.Status)
}

func TestVerifier_ResendSupersedesPendingRoundTrip(t *testing.T) {
	ctx := testContext(t)
	store := newStore(t)
	fillForm(t, store, "Filmmaker", "hunter22", "123456")
	clock := clockwork.NewFakeClock()
	var (
		mu   sync.Mutex
		seen []string
	)
	v := NewVerifier(store, clock, 2*time.Second, func(_ context.Context, req Request) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, req.Code)
		if req.Code == "123456" {
			return ErrCodeRejected
		}
		return nil
	})

	first := make(chan error, 1)
	go func() { first <- v.Submit(ctx) }()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	require.NoError(t, v.Resend(ctx))
	require.ErrorIs(t, <-first, context.Canceled)
	require.Equal(t, courses.StatusIdle, store.Snapshot().Courses.Creation.Status)

	for i, r := range "654321" {
		_, err := store.Dispatch(courses.SetVerificationDigit{Index: i, Value: string(r)})
		require.NoError(t, err)
	}
	second := make(chan error, 1)
	go func() { second <- v.Submit(ctx) }()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)
	require.NoError(t, <-second)

	creation := store.Snapshot().Courses.Creation
	require.Equal(t, courses.StatusSuccess, creation.Status)
	require.Empty(t, creation.Errors)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"654321"}, seen)
}

func TestVerifier_ResendBeforeCompleteStarts(t *testing.T) {
	ctx := testContext(t)
	store := newStore(t)
	fillForm(t, store, "Filmmaker", "hunter22", "123456")
	v := NewVerifier(store, clockwork.NewFakeClock(), 0, AlwaysAccept)

	stale, err := v.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, v.Resend(ctx))
	version := store.Version()

	require.ErrorIs(t, v.Complete(ctx, stale), ErrSuperseded)
	require.Equal(t, version, store.Version())
	require.Equal(t, courses.StatusIdle, store.Snapshot().Courses.Creation.Status)

	fillForm(t, store, "Filmmaker", "hunter22", "111111")
	require.NoError(t, v.Submit(ctx))
	require.Equal(t, courses.StatusSuccess, store.Snapshot().Courses.Creation.Status)
}

func TestRandomDecider(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))
	require.NoError(t, RandomDecider(1, rng)(ctx, Request{}))
	require.ErrorIs(t, RandomDecider(0, rng)(ctx, Request{}), ErrCodeRejected)
}

func TestMeetingJoiner_SecondJoinRejected(t *testing.T) {
	ctx := testContext(t)
	store := newStore(t)
	clock := clockwork.NewFakeClock()
	opener := &recordingOpener{}
	j := NewMeetingJoiner(store, clock, 1500*time.Millisecond, opener, &recordingClipboard{})

	done := make(chan error, 1)
	go func() { done <- j.Join(ctx) }()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.True(t, store.Snapshot().Meetings.Current.Joining)

	require.ErrorIs(t, j.Join(ctx), ErrAlreadyJoining)

	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, <-done)
	require.False(t, store.Snapshot().Meetings.Current.Joining)
	require.Equal(t, []string{"https://googlemeet/?call=Sam"}, opener.opened())
}

func TestMeetingJoiner_CallerCancelClearsJoining(t *testing.T) {
	store := newStore(t)
	clock := clockwork.NewFakeClock()
	opener := &recordingOpener{}
	j := NewMeetingJoiner(store, clock, 1500*time.Millisecond, opener, &recordingClipboard{})

	ctx, cancel := context.WithCancel(testContext(t))
	done := make(chan error, 1)
	go func() { done <- j.Join(ctx) }()
	require.NoError(t, clock.BlockUntilContext(testContext(t), 1))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	clock.Advance(time.Minute)

	require.Empty(t, opener.opened())
	current := store.Snapshot().Meetings.Current
	require.False(t, current.Joining)
	require.True(t, current.Live)

	_, err := j.Begin(testContext(t))
	require.NoError(t, err)
	require.True(t, store.Snapshot().Meetings.Current.Joining)
}

func TestMeetingJoiner_TeardownDispatchesNothing(t *testing.T) {
	store := newStore(t)
	clock := clockwork.NewFakeClock()
	opener := &recordingOpener{}
	j := NewMeetingJoiner(store, clock, 1500*time.Millisecond, opener, &recordingClipboard{})
	session := NewSession(context.Background(), nil)

	m, err := j.Begin(testContext(t))
	require.NoError(t, err)
	require.NoError(t, session.Go(WorkflowMeetingJoin, func(ctx context.Context) error { return j.Complete(ctx, m) }))
	require.NoError(t, clock.BlockUntilContext(testContext(t), 1))
	version := store.Version()

	session.Close()
	clock.Advance(time.Minute)

	require.Equal(t, version, store.Version())
	require.Empty(t, opener.opened())
	require.True(t, store.Snapshot().Meetings.Current.Joining)
}

func TestMeetingJoiner_OpenerErrorIsNotFatal(t *testing.T) {
	store := newStore(t)
	opener := &recordingOpener{err: errors.New("no browser")}
	j := NewMeetingJoiner(store, clockwork.NewFakeClock(), 0, opener, &recordingClipboard{})

	require.NoError(t, j.Join(testContext(t)))
	require.Len(t, opener.opened(), 1)
	require.False(t, store.Snapshot().Meetings.Current.Joining)
}

func TestMeetingJoiner_CopyLinkAndCalendar(t *testing.T) {
	store := newStore(t)
	opener := &recordingOpener{}
	clipboard := &recordingClipboard{}
	j := NewMeetingJoiner(store, clockwork.NewFakeClock(), 0, opener, clipboard)

	link, err := j.CopyLink(testContext(t))
	require.NoError(t, err)
	require.Equal(t, "https://googlemeet/?call=Sam", link)
	require.Equal(t, []string{link}, clipboard.texts)

	calendar, err := j.AddToCalendar(testContext(t))
	require.NoError(t, err)
	require.Contains(t, calendar, "https://calendar.google.com/calendar/render?")
	require.Contains(t, calendar, "dates=20240724T090000Z%2F20240724T100000Z")
	require.Contains(t, calendar, "action=TEMPLATE")
	require.Equal(t, []string{calendar}, opener.opened())
}

func collectStories(t *testing.T, store *dashboard.Store) <-chan stories.State {
	t.Helper()
	updates := make(chan stories.State, 64)
	unsubscribe := store.Subscribe(func(s dashboard.Snapshot) { updates <- s.Stories })
	t.Cleanup(unsubscribe)
	return updates
}

func TestDownloader_ProgressToCompletion(t *testing.T) {
	cases := []struct {
		step int
		want []int
	}{
		{10, []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}},
		{30, []int{30, 60, 90, 100}},
	}
	for _, tc := range cases {
		ctx := testContext(t)
		store := newStore(t)
		updates := collectStories(t, store)
		clock := clockwork.NewFakeClock()
		d := NewDownloader(store, clock, 200*time.Millisecond, tc.step)

		done := make(chan error, 1)
		go func() { done <- d.Start(ctx) }()

		first := <-updates
		require.True(t, first.Downloading)
		require.Equal(t, 0, first.Progress)
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		require.ErrorIs(t, d.Begin(ctx), ErrAlreadyDownloading)

		for _, want := range tc.want {
			clock.Advance(200 * time.Millisecond)
			got := <-updates
			require.True(t, got.Downloading)
			require.Equal(t, want, got.Progress)
		}

		clock.Advance(200 * time.Millisecond)
		final := <-updates
		require.False(t, final.Downloading)
		require.Equal(t, 100, final.Progress)
		require.NoError(t, <-done)
	}
}

func TestDownloader_Cancel(t *testing.T) {
	store := newStore(t)
	updates := collectStories(t, store)
	clock := clockwork.NewFakeClock()
	d := NewDownloader(store, clock, 200*time.Millisecond, 10)

	ctx, cancel := context.WithCancel(testContext(t))
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	<-updates
	require.NoError(t, clock.BlockUntilContext(testContext(t), 1))
	clock.Advance(200 * time.Millisecond)
	require.Equal(t, 10, (<-updates).Progress)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	reset := <-updates
	require.False(t, reset.Downloading)
	require.Equal(t, 0, reset.Progress)

	version := store.Version()
	clock.Advance(time.Second)
	require.Equal(t, version, store.Version())
	require.NoError(t, d.Begin(testContext(t)))
}

func TestDownloader_ParentCancelIsTeardown(t *testing.T) {
	store := newStore(t)
	clock := clockwork.NewFakeClock()
	d := NewDownloader(store, clock, 200*time.Millisecond, 10)
	parent, cancel := context.WithCancel(context.Background())
	session := NewSession(parent, nil)

	require.NoError(t, d.Begin(testContext(t)))
	require.NoError(t, session.Go(WorkflowDownload, d.Run))
	require.NoError(t, clock.BlockUntilContext(testContext(t), 1))
	clock.Advance(200 * time.Millisecond)
	require.Eventually(t, func() bool { return store.Snapshot().Stories.Progress == 10 }, time.Second, time.Millisecond)

	cancel()
	session.Close()
	version := store.Version()
	clock.Advance(time.Second)

	require.Equal(t, version, store.Version())
	s := store.Snapshot().Stories
	require.True(t, s.Downloading)
	require.Equal(t, 10, s.Progress)
}

func TestStoryJoiner(t *testing.T) {
	ctx := testContext(t)
	store := newStore(t)
	clock := clockwork.NewFakeClock()
	j := NewStoryJoiner(store, clock, 2*time.Second)

	done := make(chan error, 1)
	go func() { done <- j.Join(ctx) }()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.True(t, store.Snapshot().Stories.Joining)
	require.ErrorIs(t, j.Join(ctx), ErrAlreadyJoining)

	clock.Advance(2 * time.Second)
	require.NoError(t, <-done)
	require.False(t, store.Snapshot().Stories.Joining)
}

func TestStoryJoiner_CallerCancelClearsJoining(t *testing.T) {
	store := newStore(t)
	clock := clockwork.NewFakeClock()
	j := NewStoryJoiner(store, clock, 2*time.Second)

	ctx, cancel := context.WithCancel(testContext(t))
	done := make(chan error, 1)
	go func() { done <- j.Join(ctx) }()
	require.NoError(t, clock.BlockUntilContext(testContext(t), 1))
	require.True(t, store.Snapshot().Stories.Joining)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.False(t, store.Snapshot().Stories.Joining)
	require.NoError(t, j.Begin(testContext(t)))
}

type fakeShare struct{ err error }

func (f fakeShare) Share(context.Context, external.SharePayload) error { return f.err }

func TestSharer(t *testing.T) {
	payload := external.SharePayload{Title: "Story Books Collection", URL: "https://dashboard.local/stories"}

	clipboard := &recordingClipboard{}
	method, err := (&Sharer{Service: fakeShare{}, Clipboard: clipboard}).Share(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, SharedNatively, method)
	require.Empty(t, clipboard.texts)

	method, err = (&Sharer{Service: external.NoShare{}, Clipboard: clipboard}).Share(context.Background(), payload)
	require.NoError(t, err)
	require.Equal(t, CopiedLink, method)
	require.Equal(t, []string{payload.URL}, clipboard.texts)

	_, err = (&Sharer{Service: fakeShare{err: errors.New("dismissed")}, Clipboard: clipboard}).Share(context.Background(), payload)
	require.Error(t, err)
}

func TestAuthenticator(t *testing.T) {
	store := newStore(t)
	account, err := NewAccount(auth.Profile{ID: "7", Name: "Ana", Email: "ana@example.com", Language: "pt-br"}, "correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	a := NewAuthenticator(store, clockwork.NewFakeClock(), account)

	require.NoError(t, a.Logout(context.Background()))
	require.False(t, store.Snapshot().Auth.Authenticated)

	require.ErrorIs(t, a.Login(context.Background(), "ana@example.com", "wrong"), ErrInvalidCredentials)
	s := store.Snapshot().Auth
	require.False(t, s.Authenticated)
	require.False(t, s.Loading)
	require.Equal(t, MsgInvalidCredentials, s.Error)

	require.NoError(t, a.Login(context.Background(), " ANA@example.com ", "correct horse"))
	s = store.Snapshot().Auth
	require.True(t, s.Authenticated)
	require.Equal(t, "7", s.Profile.ID)
	require.Equal(t, "pt-BR", s.Profile.Language)
	require.Empty(t, s.Error)
}

func TestSession_CloseWaitsForRuns(t *testing.T) {
	session := NewSession(context.Background(), nil)
	started := make(chan struct{})
	finished := make(chan struct{})
	require.NoError(t, session.Go("block", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(finished)
		return ctx.Err()
	}))
	<-started
	session.Close()

	select {
	case <-finished:
	default:
		t.Fatal("Close returned before the run finished")
	}
	require.ErrorIs(t, session.Go("late", func(context.Context) error { return nil }), ErrSessionClosed)
	session.Close()
}
