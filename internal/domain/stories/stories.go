// Package stories holds the story-book collection: counters, the like and
// join flags, and the download progress.
package stories

import (
	"errors"
	"slices"

	"github.com/coursedash/dashboard/internal/app/bus"
)

const Partition = "stories"

var ErrProgressRange = errors.New("download progress must be between 0 and 100")

type Book struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Author      string  `json:"author"`
	Description string  `json:"description"`
	Pages       int     `json:"pages"`
	Category    string  `json:"category"`
	Rating      float64 `json:"rating"`
	Size        string  `json:"size"`
	Downloaded  bool    `json:"is_downloaded"`
}

type State struct {
	Books       []Book `json:"books"`
	TotalItems  int    `json:"total_items"`
	TotalSize   string `json:"total_size"`
	LastUpdated string `json:"last_updated"`
	CloudSync   bool   `json:"cloud_sync"`
	Joining     bool   `json:"is_joining"`
	Liked       bool   `json:"is_liked"`
	Downloading bool   `json:"is_downloading"`
	Progress    int    `json:"download_progress"`
}

func Initial(seed State) State {
	seed.Books = slices.Clone(seed.Books)
	seed.TotalItems = max(seed.TotalItems, len(seed.Books))
	seed.Joining = false
	seed.Downloading = false
	seed.Progress = max(0, min(seed.Progress, 100))
	return seed
}

type Command interface {
	bus.Command
	storyCommand()
}

type StartJoining struct{}
type FinishJoining struct{}

// CancelJoining abandons a join in progress.
type CancelJoining struct{}
type ToggleLike struct{}

// StartDownload resets progress to 0.
type StartDownload struct{}

// UpdateDownloadProgress is ignored unless a download is running and never
// lowers the progress.
type UpdateDownloadProgress struct {
	Progress int `json:"progress"`
}

// FinishDownload forces progress to 100.
type FinishDownload struct{}

// CancelDownload abandons a running download and drops its partial progress.
type CancelDownload struct{}

func (StartJoining) CommandType() string           { return "stories/startJoining" }
func (FinishJoining) CommandType() string          { return "stories/finishJoining" }
func (ToggleLike) CommandType() string             { return "stories/toggleLike" }
func (StartDownload) CommandType() string          { return "stories/startDownload" }
func (UpdateDownloadProgress) CommandType() string { return "stories/updateDownloadProgress" }
func (FinishDownload) CommandType() string         { return "stories/finishDownload" }
func (CancelJoining) CommandType() string          { return "stories/cancelJoining" }
func (CancelDownload) CommandType() string         { return "stories/cancelDownload" }

func (StartJoining) storyCommand()           {}
func (FinishJoining) storyCommand()          {}
func (ToggleLike) storyCommand()             {}
func (StartDownload) storyCommand()          {}
func (UpdateDownloadProgress) storyCommand() {}
func (FinishDownload) storyCommand()         {}
func (CancelJoining) storyCommand()          {}
func (CancelDownload) storyCommand()         {}

var CommandTypes = []string{
	StartJoining{}.CommandType(),
	FinishJoining{}.CommandType(),
	ToggleLike{}.CommandType(),
	StartDownload{}.CommandType(),
	UpdateDownloadProgress{}.CommandType(),
	FinishDownload{}.CommandType(),
	CancelJoining{}.CommandType(),
	CancelDownload{}.CommandType(),
}

func (c UpdateDownloadProgress) Validate() error {
	if c.Progress < 0 || c.Progress > 100 {
		return ErrProgressRange
	}
	return nil
}

func Transition(s State, cmd Command) State {
	switch c := cmd.(type) {
	case StartJoining:
		s.Joining = true
	case FinishJoining:
		s.Joining = false
	case ToggleLike:
		s.Liked = !s.Liked
	case StartDownload:
		s.Downloading = true
		s.Progress = 0
	case UpdateDownloadProgress:
		if !s.Downloading {
			return s
		}
		s.Progress = max(s.Progress, min(c.Progress, 100))
	case FinishDownload:
		s.Downloading = false
		s.Progress = 100
	case CancelJoining:
		s.Joining = false
	case CancelDownload:
		if s.Downloading {
			s.Downloading = false
			s.Progress = 0
		}
	}
	return s
}
