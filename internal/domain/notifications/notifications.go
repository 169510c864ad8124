// Package notifications stores the notification list. Unread counters are
// never stored; Unread derives them from the list.
package notifications

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/coursedash/dashboard/internal/app/bus"
)

const Partition = "notifications"

type Type string

const (
	TypeMessage Type = "message"
	TypeAlert   Type = "alert"
	TypeSetting Type = "setting"
)

// Types lists every notification type in display order.
var Types = []Type{TypeMessage, TypeAlert, TypeSetting}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

var (
	ErrIDRequired      = errors.New("notification id is required")
	ErrInvalidType     = errors.New("invalid notification type")
	ErrInvalidPriority = errors.New("invalid notification priority")
)

type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"is_read"`
	Priority  Priority  `json:"priority"`
}

type State struct {
	Notifications []Notification `json:"notifications"`
}

func Initial(seed []Notification) State {
	return State{Notifications: slices.Clone(seed)}
}

type Command interface {
	bus.Command
	notificationCommand()
}

// Add prepends a notification. ID and Timestamp are assigned by the caller.
type Add struct {
	Notification Notification `json:"notification"`
}

type MarkRead struct {
	ID string `json:"id"`
}

type MarkAllRead struct {
	Type Type `json:"type"`
}

func (Add) CommandType() string         { return "notifications/add" }
func (MarkRead) CommandType() string    { return "notifications/markRead" }
func (MarkAllRead) CommandType() string { return "notifications/markAllRead" }

func (Add) notificationCommand()         {}
func (MarkRead) notificationCommand()    {}
func (MarkAllRead) notificationCommand() {}

var CommandTypes = []string{Add{}.CommandType(), MarkRead{}.CommandType(), MarkAllRead{}.CommandType()}

func (c Add) Validate() error {
	n := c.Notification
	if strings.TrimSpace(n.ID) == "" {
		return ErrIDRequired
	}
	if !slices.Contains(Types, n.Type) {
		return ErrInvalidType
	}
	switch n.Priority {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return nil
	default:
		return ErrInvalidPriority
	}
}

func (c MarkRead) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrIDRequired
	}
	return nil
}

func (c MarkAllRead) Validate() error {
	if !slices.Contains(Types, c.Type) {
		return ErrInvalidType
	}
	return nil
}

func Transition(s State, cmd Command) State {
	switch c := cmd.(type) {
	case Add:
		n := c.Notification
		if n.Priority == "" {
			n.Priority = PriorityMedium
		}
		next := make([]Notification, 0, len(s.Notifications)+1)
		next = append(next, n)
		s.Notifications = append(next, s.Notifications...)
	case MarkRead:
		idx := slices.IndexFunc(s.Notifications, func(n Notification) bool { return n.ID == c.ID })
		if idx < 0 || s.Notifications[idx].Read {
			return s
		}
		s.Notifications = slices.Clone(s.Notifications)
		s.Notifications[idx].Read = true
	case MarkAllRead:
		unread := func(n Notification) bool { return n.Type == c.Type && !n.Read }
		if !slices.ContainsFunc(s.Notifications, unread) {
			return s
		}
		s.Notifications = slices.Clone(s.Notifications)
		for i := range s.Notifications {
			if unread(s.Notifications[i]) {
				s.Notifications[i].Read = true
			}
		}
	}
	return s
}

// Unread counts unread notifications per type. Every type is present.
func Unread(list []Notification) map[Type]int {
	counts := make(map[Type]int, len(Types))
	for _, t := range Types {
		counts[t] = 0
	}
	for _, n := range list {
		if !n.Read {
			counts[n.Type]++
		}
	}
	return counts
}
