package stories

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDownloadLifecycle(t *testing.T) {
	s := Initial(State{TotalItems: 24, Progress: 100})
	s = Transition(s, StartDownload{})
	require.True(t, s.Downloading)
	require.Equal(t, 0, s.Progress)

	s = Transition(s, UpdateDownloadProgress{Progress: 30})
	s = Transition(s, UpdateDownloadProgress{Progress: 20})
	require.Equal(t, 30, s.Progress, "progress never goes backwards")

	s = Transition(s, FinishDownload{})
	require.False(t, s.Downloading)
	require.Equal(t, 100, s.Progress)

	idle := Transition(s, UpdateDownloadProgress{Progress: 40})
	require.Equal(t, 100, idle.Progress, "updates outside a download are ignored")
}

func TestJoinAndLike(t *testing.T) {
	s := Transition(Initial(State{}), StartJoining{})
	require.True(t, s.Joining)
	s = Transition(s, FinishJoining{})
	require.False(t, s.Joining)

	s = Transition(s, ToggleLike{})
	require.True(t, s.Liked)
	s = Transition(s, ToggleLike{})
	require.False(t, s.Liked)
}

func TestInitial_TotalCoversBooks(t *testing.T) {
	s := Initial(State{Books: []Book{{ID: "1"}, {ID: "2"}}, TotalItems: 1, Downloading: true})
	require.Equal(t, 2, s.TotalItems)
	require.False(t, s.Downloading)
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, UpdateDownloadProgress{Progress: 101}.Validate(), ErrProgressRange)
	require.ErrorIs(t, UpdateDownloadProgress{Progress: -1}.Validate(), ErrProgressRange)
	require.NoError(t, UpdateDownloadProgress{Progress: 100}.Validate())
}

func TestCancelDownloadDropsPartialProgress(t *testing.T) {
	s := Transition(Initial(State{}), StartDownload{})
	s = Transition(s, UpdateDownloadProgress{Progress: 40})
	s = Transition(s, CancelDownload{})
	require.False(t, s.Downloading)
	require.Equal(t, 0, s.Progress)

	done := Transition(Transition(s, StartDownload{}), FinishDownload{})
	require.Equal(t, done, Transition(done, CancelDownload{}), "a finished download is not undone")

	joining := Transition(s, StartJoining{})
	require.False(t, Transition(joining, CancelJoining{}).Joining)
}
