package meetings

import (
	"errors"
	"slices"
	"strings"

	"github.com/coursedash/dashboard/internal/app/bus"
)

const Partition = "meetings"

var ErrMeetingIDRequired = errors.New("meeting id is required")

type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
	Online bool   `json:"is_online"`
}

type Meeting struct {
	ID                string        `json:"id"`
	Title             string        `json:"title"`
	Date              string        `json:"date"`
	Schedule          string        `json:"schedule"`
	Duration          string        `json:"duration"`
	Link              string        `json:"link"`
	Participants      []Participant `json:"participants"`
	TotalParticipants int           `json:"total_participants"`
	VideoSettings     string        `json:"video_settings"`
	Live              bool          `json:"is_live"`
	Joining           bool          `json:"is_joining"`
}

type State struct {
	Current Meeting `json:"current"`
}

// Initial raises TotalParticipants to at least the roster length.
func Initial(current Meeting) State {
	current.Participants = slices.Clone(current.Participants)
	current.TotalParticipants = max(current.TotalParticipants, len(current.Participants))
	return State{Current: current}
}

type Command interface {
	bus.Command
	meetingCommand()
}

type StartJoining struct {
	MeetingID string `json:"meeting_id"`
}

type FinishJoining struct {
	MeetingID string `json:"meeting_id"`
}

// CancelJoining drops the joining flag of an abandoned join without
// counting it as joined.
type CancelJoining struct {
	MeetingID string `json:"meeting_id"`
}

type SetLive struct {
	MeetingID string `json:"meeting_id"`
	Live      bool   `json:"live"`
}

func (StartJoining) CommandType() string  { return "meetings/startJoining" }
func (FinishJoining) CommandType() string { return "meetings/finishJoining" }
func (CancelJoining) CommandType() string { return "meetings/cancelJoining" }
func (SetLive) CommandType() string       { return "meetings/setLive" }

func (StartJoining) meetingCommand()  {}
func (FinishJoining) meetingCommand() {}
func (CancelJoining) meetingCommand() {}
func (SetLive) meetingCommand()       {}

var CommandTypes = []string{
	StartJoining{}.CommandType(),
	FinishJoining{}.CommandType(),
	CancelJoining{}.CommandType(),
	SetLive{}.CommandType(),
}

func (c StartJoining) Validate() error  { return requireID(c.MeetingID) }
func (c FinishJoining) Validate() error { return requireID(c.MeetingID) }
func (c CancelJoining) Validate() error { return requireID(c.MeetingID) }
func (c SetLive) Validate() error       { return requireID(c.MeetingID) }

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMeetingIDRequired
	}
	return nil
}

// Transition ignores commands addressed to any meeting but the current one.
func Transition(s State, cmd Command) State {
	switch c := cmd.(type) {
	case StartJoining:
		if c.MeetingID == s.Current.ID {
			s.Current.Joining = true
		}
	case FinishJoining:
		if c.MeetingID == s.Current.ID {
			s.Current.Joining = false
		}
	case CancelJoining:
		if c.MeetingID == s.Current.ID {
			s.Current.Joining = false
		}
	case SetLive:
		if c.MeetingID == s.Current.ID {
			s.Current.Live = c.Live
		}
	}
	return s
}

// Online counts roster members currently online.
func (m Meeting) Online() int {
	n := 0
	for _, p := range m.Participants {
		if p.Online {
			n++
		}
	}
	return n
}
