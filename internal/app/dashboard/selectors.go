package dashboard

import (
	"strings"

	"github.com/coursedash/dashboard/internal/domain/achievements"
	"github.com/coursedash/dashboard/internal/domain/courses"
	"github.com/coursedash/dashboard/internal/domain/notifications"
	"github.com/coursedash/dashboard/internal/domain/tasks"
)

func tasksWithStatus(s Snapshot, status tasks.Status) []tasks.Task {
	out := make([]tasks.Task, 0)
	for _, t := range s.Tasks.Tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func OverdueTasks(s Snapshot) []tasks.Task { return tasksWithStatus(s, tasks.StatusOverdue) }
func PendingTasks(s Snapshot) []tasks.Task { return tasksWithStatus(s, tasks.StatusPending) }

// TaskCountsByStatus always reports all three statuses.
func TaskCountsByStatus(s Snapshot) map[tasks.Status]int {
	counts := map[tasks.Status]int{
		tasks.StatusPending:   0,
		tasks.StatusCompleted: 0,
		tasks.StatusOverdue:   0,
	}
	for _, t := range s.Tasks.Tasks {
		counts[t.Status]++
	}
	return counts
}

func UnreadCounts(s Snapshot) map[notifications.Type]int {
	return notifications.Unread(s.Notifications.Notifications)
}

func UnreadTotal(s Snapshot) int {
	total := 0
	for _, n := range UnreadCounts(s) {
		total += n
	}
	return total
}

func EarnedCount(s Snapshot) int {
	n := 0
	for _, a := range s.Achievements.Achievements {
		if a.Earned {
			n++
		}
	}
	return n
}

// EarnedPoints sums the points of earned achievements. It always equals
// Achievements.TotalPoints.
func EarnedPoints(s Snapshot) int {
	total := 0
	for _, a := range s.Achievements.Achievements {
		if a.Earned {
			total += a.Points
		}
	}
	return total
}

type LevelInfo struct {
	Level           int `json:"level"`
	Points          int `json:"points"`
	NextLevelPoints int `json:"next_level_points"`
}

func Level(s Snapshot) LevelInfo {
	points := s.Achievements.TotalPoints
	level, next := achievements.LevelFor(points)
	return LevelInfo{Level: level, Points: points, NextLevelPoints: next}
}

func EnrolledCourses(s Snapshot) []courses.Course {
	out := make([]courses.Course, 0)
	for _, c := range s.Courses.Catalog {
		if c.Enrolled {
			out = append(out, c)
		}
	}
	return out
}

// FilteredCourses matches the UI search query against name, description and
// instructor, ignoring case. An empty query returns the whole catalog.
func FilteredCourses(s Snapshot) []courses.Course {
	query := strings.ToLower(strings.TrimSpace(s.UI.SearchQuery))
	out := make([]courses.Course, 0, len(s.Courses.Catalog))
	for _, c := range s.Courses.Catalog {
		if query == "" ||
			strings.Contains(strings.ToLower(c.Name), query) ||
			strings.Contains(strings.ToLower(c.Description), query) ||
			strings.Contains(strings.ToLower(c.Instructor), query) {
			out = append(out, c)
		}
	}
	return out
}

// ActiveCourse is the selected course, falling back to the first course
// flagged active.
func ActiveCourse(s Snapshot) (courses.Course, bool) {
	if c, ok := s.Courses.Course(s.Courses.SelectedCourse); ok {
		return c, true
	}
	for _, c := range s.Courses.Catalog {
		if c.Active {
			return c, true
		}
	}
	return courses.Course{}, false
}

func OnlineParticipants(s Snapshot) int {
	return s.Meetings.Current.Online()
}

// Summary bundles every read view for the API and the page header.
type Summary struct {
	Version            uint64                     `json:"version"`
	UnreadCounts       map[notifications.Type]int `json:"unread_counts"`
	UnreadTotal        int                        `json:"unread_total"`
	TaskCounts         map[tasks.Status]int       `json:"task_counts"`
	OverdueTasks       []tasks.Task               `json:"overdue_tasks"`
	PendingTasks       []tasks.Task               `json:"pending_tasks"`
	EarnedCount        int                        `json:"earned_count"`
	EarnedPoints       int                        `json:"earned_points"`
	Level              LevelInfo                  `json:"level"`
	EnrolledCourses    []courses.Course           `json:"enrolled_courses"`
	FilteredCourses    []courses.Course           `json:"filtered_courses"`
	ActiveCourseID     string                     `json:"active_course_id,omitempty"`
	OnlineParticipants int                        `json:"online_participants"`
	DownloadProgress   int                        `json:"download_progress"`
	VerificationStatus courses.VerificationStatus `json:"verification_status"`
}

func Summarize(s Snapshot, version uint64) Summary {
	summary := Summary{
		Version:            version,
		UnreadCounts:       UnreadCounts(s),
		UnreadTotal:        UnreadTotal(s),
		TaskCounts:         TaskCountsByStatus(s),
		OverdueTasks:       OverdueTasks(s),
		PendingTasks:       PendingTasks(s),
		EarnedCount:        EarnedCount(s),
		EarnedPoints:       EarnedPoints(s),
		Level:              Level(s),
		EnrolledCourses:    EnrolledCourses(s),
		FilteredCourses:    FilteredCourses(s),
		OnlineParticipants: OnlineParticipants(s),
		DownloadProgress:   s.Stories.Progress,
		VerificationStatus: s.Courses.Creation.Status,
	}
	if c, ok := ActiveCourse(s); ok {
		summary.ActiveCourseID = c.ID
	}
	return summary
}
