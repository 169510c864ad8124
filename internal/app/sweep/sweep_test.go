package sweep

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/coursedash/dashboard/internal/app/bus"
	"github.com/coursedash/dashboard/internal/domain/tasks"
)

type recorder struct {
	mu   sync.Mutex
	cmds []bus.Command
}

func (r *recorder) Dispatch(cmd bus.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cmds)
}

func TestRunOnce_DispatchesMarkOverdueAtClockTime(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	target := &recorder{}
	s, err := New(target, clockwork.NewFakeClockAt(at), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	require.NoError(t, s.RunOnce())
	require.Equal(t, []bus.Command{tasks.MarkOverdue{Now: at}}, target.cmds)
}

func TestScheduler_TicksUntilStopped(t *testing.T) {
	target := &recorder{}
	s, err := New(target, clockwork.NewRealClock(), 20*time.Millisecond)
	require.NoError(t, err)

	s.Start()
	require.Eventually(t, func() bool { return target.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	stoppedAt := target.count()

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, stoppedAt, target.count())
	require.ErrorIs(t, s.RunOnce(), ErrStopped)
}

func TestNew_RejectsNonPositiveInterval(t *testing.T) {
	_, err := New(&recorder{}, clockwork.NewRealClock(), 0)
	require.Error(t, err)
}
