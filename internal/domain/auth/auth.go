package auth

import (
	"errors"
	"strings"

	"golang.org/x/text/language"

	"github.com/coursedash/dashboard/internal/app/bus"
)

const Partition = "auth"

var (
	ErrProfileIDRequired = errors.New("profile id is required")
	ErrMessageRequired   = errors.New("failure message is required")
	ErrEmptyUpdate       = errors.New("profile update has no fields")
	ErrInvalidLanguage   = errors.New("invalid language tag")
)

type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar,omitempty"`
	Language string `json:"language"`
	Role     string `json:"role"`
}

type State struct {
	Profile       *Profile `json:"profile"`
	Authenticated bool     `json:"is_authenticated"`
	Loading       bool     `json:"is_loading"`
	Error         string   `json:"error,omitempty"`
}

// Initial returns a signed-in state for profile, or a signed-out one when
// profile is nil.
func Initial(profile *Profile) State {
	if profile == nil {
		return State{}
	}
	p := *profile
	p.Language = CanonicalLanguage(p.Language)
	return State{Profile: &p, Authenticated: true}
}

type Command interface {
	bus.Command
	authCommand()
}

type LoginStarted struct{}

type LoginSucceeded struct {
	Profile Profile `json:"profile"`
}

type LoginFailed struct {
	Message string `json:"message"`
}

type Logout struct{}

// UpdateProfile merges the non-nil fields into the signed-in profile.
type UpdateProfile struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type SetLanguage struct {
	Tag string `json:"tag"`
}

type ClearError struct{}

func (LoginStarted) CommandType() string   { return "auth/loginStarted" }
func (LoginSucceeded) CommandType() string { return "auth/loginSucceeded" }
func (LoginFailed) CommandType() string    { return "auth/loginFailed" }
func (Logout) CommandType() string         { return "auth/logout" }
func (UpdateProfile) CommandType() string  { return "auth/updateProfile" }
func (SetLanguage) CommandType() string    { return "auth/setLanguage" }
func (ClearError) CommandType() string     { return "auth/clearError" }

func (LoginStarted) authCommand()   {}
func (LoginSucceeded) authCommand() {}
func (LoginFailed) authCommand()    {}
func (Logout) authCommand()         {}
func (UpdateProfile) authCommand()  {}
func (SetLanguage) authCommand()    {}
func (ClearError) authCommand()     {}

var CommandTypes = []string{
	LoginStarted{}.CommandType(),
	LoginSucceeded{}.CommandType(),
	LoginFailed{}.CommandType(),
	Logout{}.CommandType(),
	UpdateProfile{}.CommandType(),
	SetLanguage{}.CommandType(),
	ClearError{}.CommandType(),
}

func (c LoginSucceeded) Validate() error {
	if strings.TrimSpace(c.Profile.ID) == "" {
		return ErrProfileIDRequired
	}
	if c.Profile.Language != "" {
		if _, err := language.Parse(c.Profile.Language); err != nil {
			return ErrInvalidLanguage
		}
	}
	return nil
}

func (c LoginFailed) Validate() error {
	if strings.TrimSpace(c.Message) == "" {
		return ErrMessageRequired
	}
	return nil
}

func (c UpdateProfile) Validate() error {
	if c.Name == nil && c.Email == nil && c.Avatar == nil {
		return ErrEmptyUpdate
	}
	return nil
}

func (c SetLanguage) Validate() error {
	if _, err := language.Parse(c.Tag); err != nil {
		return ErrInvalidLanguage
	}
	return nil
}

// CanonicalLanguage returns the BCP 47 form of tag ("EN" becomes "en"). A
// tag that does not parse is returned unchanged.
func CanonicalLanguage(tag string) string {
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	return parsed.String()
}

func Transition(s State, cmd Command) State {
	switch c := cmd.(type) {
	case LoginStarted:
		s.Loading = true
		s.Error = ""
	case LoginSucceeded:
		p := c.Profile
		p.Language = CanonicalLanguage(p.Language)
		s = State{Profile: &p, Authenticated: true}
	case LoginFailed:
		s.Loading = false
		s.Authenticated = false
		s.Error = c.Message
	case Logout:
		s = State{}
	case UpdateProfile:
		if s.Profile == nil {
			return s
		}
		p := *s.Profile
		if c.Name != nil {
			p.Name = *c.Name
		}
		if c.Email != nil {
			p.Email = *c.Email
		}
		if c.Avatar != nil {
			p.Avatar = *c.Avatar
		}
		s.Profile = &p
	case SetLanguage:
		if s.Profile == nil {
			return s
		}
		p := *s.Profile
		p.Language = CanonicalLanguage(c.Tag)
		s.Profile = &p
	case ClearError:
		s.Error = ""
	}
	return s
}
