package tasks

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/coursedash/dashboard/internal/app/bus"
)

const Partition = "tasks"

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
)

var (
	ErrTaskIDRequired    = errors.New("task id is required")
	ErrTaskTitleRequired = errors.New("task title is required")
	ErrInvalidStatus     = errors.New("invalid task status")
	ErrNowRequired       = errors.New("sweep time is required")
)

type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Due         time.Time `json:"due_at"`
	Status      Status    `json:"status"`
	Priority    string    `json:"priority"`
	Category    string    `json:"category"`
	CourseID    string    `json:"course_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type State struct {
	Tasks  []Task `json:"tasks"`
	Filter string `json:"filter"`
	SortBy string `json:"sort_by"`
}

func Initial(seed []Task) State {
	return State{Tasks: slices.Clone(seed), Filter: "all", SortBy: "dueDate"}
}

// Command is implemented by every command addressed to the task list.
type Command interface {
	bus.Command
	taskCommand()
}

// Add appends a task. ID and CreatedAt are assigned by the caller.
type Add struct {
	Task Task `json:"task"`
}

// ToggleStatus flips pending and completed. An overdue task toggles to completed.
type ToggleStatus struct {
	ID string `json:"id"`
}

// MarkOverdue is the sweep: every pending task due strictly before Now
// becomes overdue.
type MarkOverdue struct {
	Now time.Time `json:"now"`
}

func (Add) CommandType() string          { return "tasks/add" }
func (ToggleStatus) CommandType() string { return "tasks/toggleStatus" }
func (MarkOverdue) CommandType() string  { return "tasks/markOverdue" }

func (Add) taskCommand()          {}
func (ToggleStatus) taskCommand() {}
func (MarkOverdue) taskCommand()  {}

var CommandTypes = []string{
	Add{}.CommandType(),
	ToggleStatus{}.CommandType(),
	MarkOverdue{}.CommandType(),
}

func (c Add) Validate() error {
	if strings.TrimSpace(c.Task.ID) == "" {
		return ErrTaskIDRequired
	}
	if strings.TrimSpace(c.Task.Title) == "" {
		return ErrTaskTitleRequired
	}
	switch c.Task.Status {
	case "", StatusPending, StatusCompleted, StatusOverdue:
		return nil
	default:
		return ErrInvalidStatus
	}
}

func (c ToggleStatus) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrTaskIDRequired
	}
	return nil
}

func (c MarkOverdue) Validate() error {
	if c.Now.IsZero() {
		return ErrNowRequired
	}
	return nil
}

func Transition(s State, cmd Command) State {
	switch c := cmd.(type) {
	case Add:
		task := c.Task
		if task.Status == "" {
			task.Status = StatusPending
		}
		next := make([]Task, 0, len(s.Tasks)+1)
		next = append(next, s.Tasks...)
		s.Tasks = append(next, task)
	case ToggleStatus:
		idx := slices.IndexFunc(s.Tasks, func(t Task) bool { return t.ID == c.ID })
		if idx < 0 {
			return s
		}
		s.Tasks = slices.Clone(s.Tasks)
		if s.Tasks[idx].Status == StatusCompleted {
			s.Tasks[idx].Status = StatusPending
		} else {
			s.Tasks[idx].Status = StatusCompleted
		}
	case MarkOverdue:
		if !slices.ContainsFunc(s.Tasks, func(t Task) bool { return isStale(t, c.Now) }) {
			return s
		}
		s.Tasks = slices.Clone(s.Tasks)
		for i := range s.Tasks {
			if isStale(s.Tasks[i], c.Now) {
				s.Tasks[i].Status = StatusOverdue
			}
		}
	}
	return s
}

func isStale(t Task, now time.Time) bool {
	return t.Status == StatusPending && t.Due.Before(now)
}
