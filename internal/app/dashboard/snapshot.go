// Package dashboard binds the eight partitions into one aggregate snapshot,
// registers them on the command bus and derives the read views.
package dashboard

import (
	"github.com/coursedash/dashboard/internal/app/bus"
	"github.com/coursedash/dashboard/internal/domain/achievements"
	"github.com/coursedash/dashboard/internal/domain/auth"
	"github.com/coursedash/dashboard/internal/domain/courses"
	"github.com/coursedash/dashboard/internal/domain/meetings"
	"github.com/coursedash/dashboard/internal/domain/notifications"
	"github.com/coursedash/dashboard/internal/domain/stories"
	"github.com/coursedash/dashboard/internal/domain/tasks"
	"github.com/coursedash/dashboard/internal/domain/ui"
)

// Snapshot is the whole dashboard state at one version. A snapshot handed
// out by the store is never mutated afterwards.
type Snapshot struct {
	Auth          auth.State          `json:"auth"`
	Courses       courses.State       `json:"courses"`
	UI            ui.State            `json:"ui"`
	Notifications notifications.State `json:"notifications"`
	Meetings      meetings.State      `json:"meetings"`
	Stories       stories.State       `json:"stories"`
	Tasks         tasks.State         `json:"tasks"`
	Achievements  achievements.State  `json:"achievements"`
}

type Store = bus.Store[Snapshot]

// Routes registers every partition's commands and transition.
func Routes() []bus.Route[Snapshot] {
	return []bus.Route[Snapshot]{
		route(auth.Partition, auth.CommandTypes, func(s *Snapshot) *auth.State { return &s.Auth }, auth.Transition),
		route(courses.Partition, courses.CommandTypes, func(s *Snapshot) *courses.State { return &s.Courses }, courses.Transition),
		route(ui.Partition, ui.CommandTypes, func(s *Snapshot) *ui.State { return &s.UI }, ui.Transition),
		route(notifications.Partition, notifications.CommandTypes, func(s *Snapshot) *notifications.State { return &s.Notifications }, notifications.Transition),
		route(meetings.Partition, meetings.CommandTypes, func(s *Snapshot) *meetings.State { return &s.Meetings }, meetings.Transition),
		route(stories.Partition, stories.CommandTypes, func(s *Snapshot) *stories.State { return &s.Stories }, stories.Transition),
		route(tasks.Partition, tasks.CommandTypes, func(s *Snapshot) *tasks.State { return &s.Tasks }, tasks.Transition),
		route(achievements.Partition, achievements.CommandTypes, func(s *Snapshot) *achievements.State { return &s.Achievements }, achievements.Transition),
	}
}

// route adapts a partition transition to the aggregate. field selects the
// partition inside a private copy of the snapshot, so only that field is
// replaced.
func route[P any, C bus.Command](partition string, commandTypes []string, field func(*Snapshot) *P, transition func(P, C) P) bus.Route[Snapshot] {
	return bus.Route[Snapshot]{
		Partition: partition,
		Commands:  commandTypes,
		Apply: func(s Snapshot, cmd bus.Command) Snapshot {
			c, ok := cmd.(C)
			if !ok {
				return s
			}
			p := field(&s)
			*p = transition(*p, c)
			return s
		},
	}
}

// NewStore creates a store owning initial. The caller closes it.
func NewStore(initial Snapshot, opts ...bus.Option) (*Store, error) {
	return bus.New(initial, Routes(), opts...)
}
