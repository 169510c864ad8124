package ui

import (
	"errors"

	"github.com/coursedash/dashboard/internal/app/bus"
)

const Partition = "ui"

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var (
	ErrViewRequired = errors.New("view name is required")
	ErrInvalidTheme = errors.New("theme must be light or dark")
)

type State struct {
	ActiveView       string `json:"active_view"`
	MobileMenuOpen   bool   `json:"mobile_menu_open"`
	CoursesExpanded  bool   `json:"courses_expanded"`
	SearchQuery      string `json:"search_query"`
	SearchFocused    bool   `json:"search_focused"`
	Theme            Theme  `json:"theme"`
	SidebarCollapsed bool   `json:"sidebar_collapsed"`
}

func Initial() State {
	return State{ActiveView: "courses", CoursesExpanded: true, Theme: ThemeLight}
}

type Command interface {
	bus.Command
	uiCommand()
}

type SetActiveView struct {
	View string `json:"view"`
}
type ToggleMobileMenu struct{}
type SetMobileMenu struct {
	Open bool `json:"open"`
}
type ToggleCoursesExpanded struct{}
type SetCoursesExpanded struct {
	Expanded bool `json:"expanded"`
}
type SetSearchQuery struct {
	Query string `json:"query"`
}
type SetSearchFocused struct {
	Focused bool `json:"focused"`
}
type ToggleTheme struct{}
type SetTheme struct {
	Theme Theme `json:"theme"`
}
type ToggleSidebar struct{}
type SetSidebarCollapsed struct {
	Collapsed bool `json:"collapsed"`
}

func (SetActiveView) CommandType() string         { return "ui/setActiveView" }
func (ToggleMobileMenu) CommandType() string      { return "ui/toggleMobileMenu" }
func (SetMobileMenu) CommandType() string         { return "ui/setMobileMenu" }
func (ToggleCoursesExpanded) CommandType() string { return "ui/toggleCoursesExpanded" }
func (SetCoursesExpanded) CommandType() string    { return "ui/setCoursesExpanded" }
func (SetSearchQuery) CommandType() string        { return "ui/setSearchQuery" }
func (SetSearchFocused) CommandType() string      { return "ui/setSearchFocused" }
func (ToggleTheme) CommandType() string           { return "ui/toggleTheme" }
func (SetTheme) CommandType() string              { return "ui/setTheme" }
func (ToggleSidebar) CommandType() string         { return "ui/toggleSidebar" }
func (SetSidebarCollapsed) CommandType() string   { return "ui/setSidebarCollapsed" }

func (SetActiveView) uiCommand()         {}
func (ToggleMobileMenu) uiCommand()      {}
func (SetMobileMenu) uiCommand()         {}
func (ToggleCoursesExpanded) uiCommand() {}
func (SetCoursesExpanded) uiCommand()    {}
func (SetSearchQuery) uiCommand()        {}
func (SetSearchFocused) uiCommand()      {}
func (ToggleTheme) uiCommand()           {}
func (SetTheme) uiCommand()              {}
func (ToggleSidebar) uiCommand()         {}
func (SetSidebarCollapsed) uiCommand()   {}

var CommandTypes = []string{
	SetActiveView{}.CommandType(),
	ToggleMobileMenu{}.CommandType(),
	SetMobileMenu{}.CommandType(),
	ToggleCoursesExpanded{}.CommandType(),
	SetCoursesExpanded{}.CommandType(),
	SetSearchQuery{}.CommandType(),
	SetSearchFocused{}.CommandType(),
	ToggleTheme{}.CommandType(),
	SetTheme{}.CommandType(),
	ToggleSidebar{}.CommandType(),
	SetSidebarCollapsed{}.CommandType(),
}

func (c SetActiveView) Validate() error {
	if c.View == "" {
		return ErrViewRequired
	}
	return nil
}

func (c SetTheme) Validate() error {
	if c.Theme != ThemeLight && c.Theme != ThemeDark {
		return ErrInvalidTheme
	}
	return nil
}

func Transition(s State, cmd Command) State {
	switch c := cmd.(type) {
	case SetActiveView:
		s.ActiveView = c.View
	case ToggleMobileMenu:
		s.MobileMenuOpen = !s.MobileMenuOpen
	case SetMobileMenu:
		s.MobileMenuOpen = c.Open
	case ToggleCoursesExpanded:
		s.CoursesExpanded = !s.CoursesExpanded
	case SetCoursesExpanded:
		s.CoursesExpanded = c.Expanded
	case SetSearchQuery:
		s.SearchQuery = c.Query
	case SetSearchFocused:
		s.SearchFocused = c.Focused
	case ToggleTheme:
		if s.Theme == ThemeDark {
			s.Theme = ThemeLight
		} else {
			s.Theme = ThemeDark
		}
	case SetTheme:
		s.Theme = c.Theme
	case ToggleSidebar:
		s.SidebarCollapsed = !s.SidebarCollapsed
	case SetSidebarCollapsed:
		s.SidebarCollapsed = c.Collapsed
	}
	return s
}
