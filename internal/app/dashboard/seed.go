package dashboard

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coursedash/dashboard/internal/domain/achievements"
	"github.com/coursedash/dashboard/internal/domain/auth"
	"github.com/coursedash/dashboard/internal/domain/courses"
	"github.com/coursedash/dashboard/internal/domain/meetings"
	"github.com/coursedash/dashboard/internal/domain/notifications"
	"github.com/coursedash/dashboard/internal/domain/stories"
	"github.com/coursedash/dashboard/internal/domain/tasks"
	"github.com/coursedash/dashboard/internal/domain/ui"
	"github.com/coursedash/dashboard/internal/platform/apperr"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the on-disk fixture. Durations are relative to the load time.
type Seed struct {
	Profile               *seedProfile       `yaml:"profile"`
	Courses               []seedCourse       `yaml:"courses"`
	Enrolled              []string           `yaml:"enrolled"`
	CreationName          string             `yaml:"creation_name"`
	Meeting               seedMeeting        `yaml:"meeting"`
	Stories               seedStories        `yaml:"stories"`
	Notifications         []seedNotification `yaml:"notifications"`
	Tasks                 []seedTask         `yaml:"tasks"`
	AchievementCategories []string           `yaml:"achievement_categories"`
	Achievements          []seedAchievement  `yaml:"achievements"`
}

type seedProfile struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Avatar   string `yaml:"avatar"`
	Language string `yaml:"language"`
	Role     string `yaml:"role"`
}

type seedLevel struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Schedule    string  `yaml:"schedule"`
	Duration    string  `yaml:"duration"`
	Students    int     `yaml:"students"`
	Rating      float64 `yaml:"rating"`
	Description string  `yaml:"description"`
	Progress    int     `yaml:"progress"`
	Enrolled    bool    `yaml:"enrolled"`
}

type seedCourse struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Image       string      `yaml:"image"`
	Instructor  string      `yaml:"instructor"`
	Duration    string      `yaml:"duration"`
	Students    int         `yaml:"students"`
	Rating      float64     `yaml:"rating"`
	Progress    int         `yaml:"progress"`
	Enrolled    bool        `yaml:"enrolled"`
	Active      bool        `yaml:"active"`
	Levels      []seedLevel `yaml:"levels"`
}

type seedParticipant struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	Avatar string `yaml:"avatar"`
	Online bool   `yaml:"online"`
}

type seedMeeting struct {
	ID                string            `yaml:"id"`
	Title             string            `yaml:"title"`
	Date              string            `yaml:"date"`
	Schedule          string            `yaml:"schedule"`
	Duration          string            `yaml:"duration"`
	Link              string            `yaml:"link"`
	Participants      []seedParticipant `yaml:"participants"`
	TotalParticipants int               `yaml:"total_participants"`
	VideoSettings     string            `yaml:"video_settings"`
	Live              bool              `yaml:"live"`
}

type seedBook struct {
	ID          string  `yaml:"id"`
	Title       string  `yaml:"title"`
	Author      string  `yaml:"author"`
	Description string  `yaml:"description"`
	Pages       int     `yaml:"pages"`
	Category    string  `yaml:"category"`
	Rating      float64 `yaml:"rating"`
	Size        string  `yaml:"size"`
	Downloaded  bool    `yaml:"downloaded"`
}

type seedStories struct {
	Books       []seedBook `yaml:"books"`
	TotalItems  int        `yaml:"total_items"`
	TotalSize   string     `yaml:"total_size"`
	LastUpdated string     `yaml:"last_updated"`
	CloudSync   bool       `yaml:"cloud_sync"`
	Liked       bool       `yaml:"liked"`
}

type seedNotification struct {
	ID       string        `yaml:"id"`
	Type     string        `yaml:"type"`
	Title    string        `yaml:"title"`
	Body     string        `yaml:"message"`
	Ago      time.Duration `yaml:"ago"`
	Read     bool          `yaml:"read"`
	Priority string        `yaml:"priority"`
}

type seedTask struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	DueIn       time.Duration `yaml:"due_in"`
	Status      string        `yaml:"status"`
	Priority    string        `yaml:"priority"`
	Category    string        `yaml:"category"`
	CourseID    string        `yaml:"course_id"`
	CreatedAgo  time.Duration `yaml:"created_ago"`
}

type seedAchievement struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Icon        string        `yaml:"icon"`
	Category    string        `yaml:"category"`
	Points      int           `yaml:"points"`
	Earned      bool          `yaml:"earned"`
	EarnedAgo   time.Duration `yaml:"earned_ago"`
	Progress    int           `yaml:"progress"`
	MaxProgress int           `yaml:"max_progress"`
	Rarity      string        `yaml:"rarity"`
}

// DefaultSeed parses the embedded fixture.
func DefaultSeed() (Seed, error) {
	return ParseSeed(bytes.NewReader(defaultSeed))
}

// ParseSeed decodes a fixture. Unknown keys are rejected.
func ParseSeed(r io.Reader) (Seed, error) {
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return Seed{}, apperr.WrapConfiguration(err, "decode seed")
	}
	return seed, nil
}

// LoadSeed decodes a fixture and resolves it into a snapshot at now.
func LoadSeed(r io.Reader, now time.Time, scope courses.LevelScope) (Snapshot, error) {
	seed, err := ParseSeed(r)
	if err != nil {
		return Snapshot{}, err
	}
	return seed.Snapshot(now, scope)
}

// DefaultSnapshot resolves the embedded fixture at now.
func DefaultSnapshot(now time.Time, scope courses.LevelScope) (Snapshot, error) {
	return LoadSeed(bytes.NewReader(defaultSeed), now, scope)
}

// Snapshot resolves relative times against now and builds every partition's
// initial state.
func (s Seed) Snapshot(now time.Time, scope courses.LevelScope) (Snapshot, error) {
	if scope != courses.ScopeCourse && scope != courses.ScopeGlobal {
		return Snapshot{}, apperr.Configuration("unknown level scope %q", scope)
	}

	var profile *auth.Profile
	if s.Profile != nil {
		profile = &auth.Profile{
			ID:       s.Profile.ID,
			Name:     s.Profile.Name,
			Email:    s.Profile.Email,
			Avatar:   s.Profile.Avatar,
			Language: s.Profile.Language,
			Role:     s.Profile.Role,
		}
	}

	catalog := make([]courses.Course, 0, len(s.Courses))
	seenCourses := make(map[string]bool, len(s.Courses))
	for _, c := range s.Courses {
		if c.ID == "" || seenCourses[c.ID] {
			return Snapshot{}, apperr.Configuration("seed course id %q missing or duplicated", c.ID)
		}
		seenCourses[c.ID] = true
		levels := make([]courses.Level, 0, len(c.Levels))
		seenLevels := make(map[string]bool, len(c.Levels))
		for _, l := range c.Levels {
			if l.ID == "" || seenLevels[l.ID] {
				return Snapshot{}, apperr.Configuration("seed level id %q missing or duplicated in course %q", l.ID, c.ID)
			}
			seenLevels[l.ID] = true
			levels = append(levels, courses.Level{
				ID:          l.ID,
				Name:        l.Name,
				Schedule:    l.Schedule,
				Duration:    l.Duration,
				Students:    l.Students,
				Rating:      l.Rating,
				Description: l.Description,
				Progress:    l.Progress,
				Enrolled:    l.Enrolled,
			})
		}
		catalog = append(catalog, courses.Course{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			Image:       c.Image,
			Instructor:  c.Instructor,
			Duration:    c.Duration,
			Students:    c.Students,
			Rating:      c.Rating,
			Progress:    c.Progress,
			Enrolled:    c.Enrolled,
			Active:      c.Active,
			Levels:      levels,
		})
	}

	participants := make([]meetings.Participant, 0, len(s.Meeting.Participants))
	for _, p := range s.Meeting.Participants {
		participants = append(participants, meetings.Participant{ID: p.ID, Name: p.Name, Avatar: p.Avatar, Online: p.Online})
	}
	meeting := meetings.Meeting{
		ID:                s.Meeting.ID,
		Title:             s.Meeting.Title,
		Date:              s.Meeting.Date,
		Schedule:          s.Meeting.Schedule,
		Duration:          s.Meeting.Duration,
		Link:              s.Meeting.Link,
		Participants:      participants,
		TotalParticipants: s.Meeting.TotalParticipants,
		VideoSettings:     s.Meeting.VideoSettings,
		Live:              s.Meeting.Live,
	}

	books := make([]stories.Book, 0, len(s.Stories.Books))
	for _, b := range s.Stories.Books {
		books = append(books, stories.Book{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			Description: b.Description,
			Pages:       b.Pages,
			Category:    b.Category,
			Rating:      b.Rating,
			Size:        b.Size,
			Downloaded:  b.Downloaded,
		})
	}

	notes := make([]notifications.Notification, 0, len(s.Notifications))
	for _, n := range s.Notifications {
		note := notifications.Notification{
			ID:        n.ID,
			Type:      notifications.Type(n.Type),
			Title:     n.Title,
			Body:      n.Body,
			Timestamp: now.Add(-n.Ago),
			Read:      n.Read,
			Priority:  notifications.Priority(n.Priority),
		}
		if err := (notifications.Add{Notification: note}).Validate(); err != nil {
			return Snapshot{}, apperr.WrapConfiguration(err, "seed notification %q", n.ID)
		}
		notes = append(notes, note)
	}

	taskList := make([]tasks.Task, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		task := tasks.Task{
			ID:          t.ID,
			Title:       t.Title,
			Description: t.Description,
			Due:         now.Add(t.DueIn),
			Status:      tasks.Status(t.Status),
			Priority:    t.Priority,
			Category:    t.Category,
			CourseID:    t.CourseID,
			CreatedAt:   now.Add(-t.CreatedAgo),
		}
		if task.Status == "" {
			task.Status = tasks.StatusPending
		}
		if err := (tasks.Add{Task: task}).Validate(); err != nil {
			return Snapshot{}, apperr.WrapConfiguration(err, "seed task %q", t.ID)
		}
		taskList = append(taskList, task)
	}

	earned := make([]achievements.Achievement, 0, len(s.Achievements))
	for _, a := range s.Achievements {
		item := achievements.Achievement{
			ID:          a.ID,
			Title:       a.Title,
			Description: a.Description,
			Icon:        a.Icon,
			Category:    a.Category,
			Points:      a.Points,
			Earned:      a.Earned,
			Progress:    a.Progress,
			MaxProgress: a.MaxProgress,
			Rarity:      achievements.Rarity(a.Rarity),
		}
		if a.Earned {
			at := now.Add(-a.EarnedAgo)
			item.EarnedAt = &at
		}
		earned = append(earned, item)
	}

	return Snapshot{
		Auth:          auth.Initial(profile),
		Courses:       courses.Initial(catalog, s.Enrolled, s.CreationName, scope),
		UI:            ui.Initial(),
		Notifications: notifications.Initial(notes),
		Meetings:      meetings.Initial(meeting),
		Stories: stories.Initial(stories.State{
			Books:       books,
			TotalItems:  s.Stories.TotalItems,
			TotalSize:   s.Stories.TotalSize,
			LastUpdated: s.Stories.LastUpdated,
			CloudSync:   s.Stories.CloudSync,
			Liked:       s.Stories.Liked,
		}),
		Tasks:        tasks.Initial(taskList),
		Achievements: achievements.Initial(earned, s.AchievementCategories),
	}, nil
}

// MustDefaultSnapshot is DefaultSnapshot for tests and tools that cannot
// recover from a broken embedded fixture.
func MustDefaultSnapshot(now time.Time) Snapshot {
	snap, err := DefaultSnapshot(now, courses.ScopeCourse)
	if err != nil {
		panic(fmt.Sprintf("embedded seed: %v", err))
	}
	return snap
}
