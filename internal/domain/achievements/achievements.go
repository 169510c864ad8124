package achievements

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/coursedash/dashboard/internal/app/bus"
)

const Partition = "achievements"

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

var (
	ErrAchievementIDRequired = errors.New("achievement id is required")
	ErrNegativeProgress      = errors.New("progress must not be negative")
)

type Achievement struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Category    string     `json:"category"`
	Points      int        `json:"points"`
	Earned      bool       `json:"is_earned"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
	Progress    int        `json:"progress"`
	MaxProgress int        `json:"max_progress"`
	Rarity      Rarity     `json:"rarity"`
}

type State struct {
	Achievements []Achievement `json:"achievements"`
	TotalPoints  int           `json:"total_points"`
	Categories   []string      `json:"categories"`
	Filter       string        `json:"filter"`
	SortBy       string        `json:"sort_by"`
}

// Initial derives TotalPoints from the earned achievements so the seed can
// never disagree with the sum.
func Initial(seed []Achievement, categories []string) State {
	list := slices.Clone(seed)
	total := 0
	for i := range list {
		if list[i].MaxProgress < 1 {
			list[i].MaxProgress = 1
		}
		list[i].Progress = clamp(list[i].Progress, 0, list[i].MaxProgress)
		if list[i].Earned {
			list[i].Progress = list[i].MaxProgress
			total += list[i].Points
		}
	}
	return State{
		Achievements: list,
		TotalPoints:  total,
		Categories:   slices.Clone(categories),
		Filter:       "all",
		SortBy:       "recent",
	}
}

type Command interface {
	bus.Command
	achievementCommand()
}

// UpdateProgress sets progress on an unearned achievement. Crossing
// MaxProgress earns it.
type UpdateProgress struct {
	ID       string    `json:"id"`
	Progress int       `json:"progress"`
	At       time.Time `json:"at"`
}

type Earn struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

func (UpdateProgress) CommandType() string { return "achievements/updateProgress" }
func (Earn) CommandType() string           { return "achievements/earn" }

func (UpdateProgress) achievementCommand() {}
func (Earn) achievementCommand()           {}

var CommandTypes = []string{UpdateProgress{}.CommandType(), Earn{}.CommandType()}

func (c UpdateProgress) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrAchievementIDRequired
	}
	if c.Progress < 0 {
		return ErrNegativeProgress
	}
	return nil
}

func (c Earn) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrAchievementIDRequired
	}
	return nil
}

func Transition(s State, cmd Command) State {
	switch c := cmd.(type) {
	case UpdateProgress:
		idx := s.find(c.ID)
		if idx < 0 || s.Achievements[idx].Earned {
			return s
		}
		current := s.Achievements[idx]
		progress := clamp(c.Progress, 0, current.MaxProgress)
		if progress < current.Progress {
			return s
		}
		s.Achievements = slices.Clone(s.Achievements)
		s.Achievements[idx].Progress = progress
		if progress >= current.MaxProgress {
			s = s.earn(idx, c.At)
		}
	case Earn:
		idx := s.find(c.ID)
		if idx < 0 || s.Achievements[idx].Earned {
			return s
		}
		s.Achievements = slices.Clone(s.Achievements)
		s.Achievements[idx].Progress = s.Achievements[idx].MaxProgress
		s = s.earn(idx, c.At)
	}
	return s
}

// earn expects s.Achievements to already be a private copy.
func (s State) earn(idx int, at time.Time) State {
	earnedAt := at
	s.Achievements[idx].Earned = true
	s.Achievements[idx].EarnedAt = &earnedAt
	s.TotalPoints += s.Achievements[idx].Points
	return s
}

func (s State) find(id string) int {
	return slices.IndexFunc(s.Achievements, func(a Achievement) bool { return a.ID == id })
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// LevelThresholds are the point totals at which each level starts; level N
// starts at LevelThresholds[N-1]. Each step doubles the previous one.
var LevelThresholds = []int{0, 250, 500, 1000, 2000, 4000, 8000}

// LevelFor returns the level reached with points and the total needed for the
// next level. At the top level next equals the last threshold.
func LevelFor(points int) (level int, next int) {
	level = 1
	for i, threshold := range LevelThresholds {
		if points >= threshold {
			level = i + 1
		}
	}
	if level < len(LevelThresholds) {
		return level, LevelThresholds[level]
	}
	return level, LevelThresholds[len(LevelThresholds)-1]
}
