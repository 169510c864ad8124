package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seeded() State {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	return Initial([]Notification{
		{ID: "1", Type: TypeMessage, Timestamp: now},
		{ID: "2", Type: TypeMessage, Timestamp: now.Add(-time.Hour)},
		{ID: "3", Type: TypeAlert, Timestamp: now.Add(-2 * time.Hour)},
	})
}

func TestMarkAllRead_OnlyTouchesOneType(t *testing.T) {
	s := seeded()
	require.Equal(t, map[Type]int{TypeMessage: 2, TypeAlert: 1, TypeSetting: 0}, Unread(s.Notifications))

	s = Transition(s, MarkAllRead{Type: TypeMessage})
	counts := Unread(s.Notifications)
	require.Equal(t, 0, counts[TypeMessage])
	require.Equal(t, 1, counts[TypeAlert])
}

func TestAdd_PrependsAndCounts(t *testing.T) {
	prior := seeded()
	s := Transition(prior, Add{Notification: Notification{ID: "4", Type: TypeSetting}})
	require.Equal(t, "4", s.Notifications[0].ID)
	require.Equal(t, PriorityMedium, s.Notifications[0].Priority)
	require.Equal(t, 1, Unread(s.Notifications)[TypeSetting])
	require.Len(t, prior.Notifications, 3)
}

func TestMarkRead(t *testing.T) {
	prior := seeded()
	s := Transition(prior, MarkRead{ID: "3"})
	require.True(t, s.Notifications[2].Read)
	require.False(t, prior.Notifications[2].Read)

	again := Transition(s, MarkRead{ID: "3"})
	require.Equal(t, s, again)
}

func TestCountersMatchListAfterAnySequence(t *testing.T) {
	s := seeded()
	cmds := []Command{
		Add{Notification: Notification{ID: "a", Type: TypeAlert}},
		MarkRead{ID: "1"},
		Add{Notification: Notification{ID: "b", Type: TypeSetting, Read: true}},
		MarkAllRead{Type: TypeAlert},
		MarkRead{ID: "missing"},
	}
	for _, cmd := range cmds {
		s = Transition(s, cmd)
		counts := Unread(s.Notifications)
		for _, typ := range Types {
			want := 0
			for _, n := range s.Notifications {
				if n.Type == typ && !n.Read {
					want++
				}
			}
			require.Equal(t, want, counts[typ])
		}
	}
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Add{Notification: Notification{ID: "x", Type: "email"}}.Validate(), ErrInvalidType)
	require.ErrorIs(t, Add{Notification: Notification{ID: "x", Type: TypeAlert, Priority: "urgent"}}.Validate(), ErrInvalidPriority)
	require.ErrorIs(t, MarkRead{}.Validate(), ErrIDRequired)
	require.ErrorIs(t, MarkAllRead{Type: "email"}.Validate(), ErrInvalidType)
}
