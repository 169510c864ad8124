// Package courses holds the course catalog, the enrollment set and the
// course-creation verification session.
package courses

import (
	"errors"
	"maps"
	"slices"
	"strings"

	"github.com/coursedash/dashboard/internal/app/bus"
)

const Partition = "courses"

// CodeLength is the number of digit slots in a verification code.
const CodeLength = 6

// LevelScope decides how level identifiers are matched by Enroll and
// UpdateProgress.
type LevelScope string

const (
	// ScopeCourse matches a level only inside the command's course.
	ScopeCourse LevelScope = "course"
	// ScopeGlobal matches every level with the identifier in any course.
	ScopeGlobal LevelScope = "global"
)

type VerificationStatus string

const (
	StatusIdle    VerificationStatus = "idle"
	StatusPending VerificationStatus = "pending"
	StatusSuccess VerificationStatus = "success"
	StatusError   VerificationStatus = "error"
)

// Field names used as keys in Creation.Errors.
const (
	FieldName    = "name"
	FieldSecret  = "secret"
	FieldCode    = "code"
	FieldGeneral = "general"
)

var (
	ErrIDRequired      = errors.New("course or level id is required")
	ErrProgressRange   = errors.New("progress must be between 0 and 100")
	ErrUnknownField    = errors.New("unknown course creation field")
	ErrDigitIndex      = errors.New("verification digit index out of range")
	ErrDigitValue      = errors.New("verification digit must be empty or a single digit")
	ErrErrorsRequired  = errors.New("at least one error is required")
	ErrUnknownErrorKey = errors.New("unknown error field")
)

type Level struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Schedule    string  `json:"schedule"`
	Duration    string  `json:"duration"`
	Students    int     `json:"students"`
	Rating      float64 `json:"rating"`
	Description string  `json:"description"`
	Progress    int     `json:"progress"`
	Enrolled    bool    `json:"is_enrolled"`
}

type Course struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image,omitempty"`
	Instructor  string  `json:"instructor"`
	Duration    string  `json:"duration"`
	Students    int     `json:"students"`
	Rating      float64 `json:"rating"`
	Progress    int     `json:"progress"`
	Enrolled    bool    `json:"is_enrolled"`
	Active      bool    `json:"is_active"`
	Levels      []Level `json:"levels"`
}

// Creation is the verification-gated course creation form. Secret never
// leaves the process.
type Creation struct {
	Name      string             `json:"name"`
	Secret    string             `json:"-"`
	Code      [CodeLength]string `json:"code"`
	Verifying bool               `json:"is_verifying"`
	Status    VerificationStatus `json:"status"`
	Errors    map[string]string  `json:"errors"`
}

// CodeString joins the digit slots.
func (c Creation) CodeString() string {
	return strings.Join(c.Code[:], "")
}

type State struct {
	Catalog        []Course   `json:"catalog"`
	Enrolled       []string   `json:"enrolled"`
	SelectedCourse string     `json:"selected_course,omitempty"`
	SelectedLevel  string     `json:"selected_level,omitempty"`
	Scope          LevelScope `json:"level_scope"`
	Creation       Creation   `json:"creation"`
}

func Initial(catalog []Course, enrolled []string, creationName string, scope LevelScope) State {
	if scope == "" {
		scope = ScopeCourse
	}
	list := slices.Clone(catalog)
	for i := range list {
		list[i].Levels = slices.Clone(list[i].Levels)
	}
	set := make([]string, 0, len(enrolled))
	for _, id := range enrolled {
		if !slices.Contains(set, id) {
			set = append(set, id)
		}
	}
	return State{
		Catalog:  list,
		Enrolled: set,
		Scope:    scope,
		Creation: Creation{Name: creationName, Status: StatusIdle, Errors: map[string]string{}},
	}
}

type Command interface {
	bus.Command
	courseCommand()
}

// SelectCourse records the selected course. An unknown ID clears it.
type SelectCourse struct {
	ID string `json:"id"`
}

// SelectLevel records the selected level; an empty ID clears it.
type SelectLevel struct {
	ID string `json:"id"`
}

// Enroll adds ID to the enrollment set and flags the matching course and
// levels. CourseID names the owning course of a level.
type Enroll struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id,omitempty"`
}

type UpdateProgress struct {
	ID       string `json:"id"`
	CourseID string `json:"course_id,omitempty"`
	Progress int    `json:"progress"`
}

// SetCreationField updates name or secret and clears that field's error.
type SetCreationField struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type SetVerificationDigit struct {
	Index int    `json:"index"`
	Value string `json:"value"`
}

type SetVerificationErrors struct {
	Errors map[string]string `json:"errors"`
}

type StartVerification struct{}

// VerificationSucceeded clears errors, secret and code. The name stays.
type VerificationSucceeded struct{}

type VerificationFailed struct {
	Errors map[string]string `json:"errors"`
}

// ResetVerification is "resend code": empty slots, no errors, idle.
type ResetVerification struct{}

type ClearCourseErrors struct{}

func (SelectCourse) CommandType() string          { return "courses/selectCourse" }
func (SelectLevel) CommandType() string           { return "courses/selectLevel" }
func (Enroll) CommandType() string                { return "courses/enroll" }
func (UpdateProgress) CommandType() string        { return "courses/updateProgress" }
func (SetCreationField) CommandType() string      { return "courses/setCreationField" }
func (SetVerificationDigit) CommandType() string  { return "courses/setVerificationDigit" }
func (SetVerificationErrors) CommandType() string { return "courses/setVerificationErrors" }
func (StartVerification) CommandType() string     { return "courses/startVerification" }
func (VerificationSucceeded) CommandType() string { return "courses/verificationSucceeded" }
func (VerificationFailed) CommandType() string    { return "courses/verificationFailed" }
func (ResetVerification) CommandType() string     { return "courses/resetVerification" }
func (ClearCourseErrors) CommandType() string     { return "courses/clearErrors" }

func (SelectCourse) courseCommand()          {}
func (SelectLevel) courseCommand()           {}
func (Enroll) courseCommand()                {}
func (UpdateProgress) courseCommand()        {}
func (SetCreationField) courseCommand()      {}
func (SetVerificationDigit) courseCommand()  {}
func (SetVerificationErrors) courseCommand() {}
func (StartVerification) courseCommand()     {}
func (VerificationSucceeded) courseCommand() {}
func (VerificationFailed) courseCommand()    {}
func (ResetVerification) courseCommand()     {}
func (ClearCourseErrors) courseCommand()     {}

var CommandTypes = []string{
	SelectCourse{}.CommandType(),
	SelectLevel{}.CommandType(),
	Enroll{}.CommandType(),
	UpdateProgress{}.CommandType(),
	SetCreationField{}.CommandType(),
	SetVerificationDigit{}.CommandType(),
	SetVerificationErrors{}.CommandType(),
	StartVerification{}.CommandType(),
	VerificationSucceeded{}.CommandType(),
	VerificationFailed{}.CommandType(),
	ResetVerification{}.CommandType(),
	ClearCourseErrors{}.CommandType(),
}

func (c Enroll) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrIDRequired
	}
	return nil
}

func (c UpdateProgress) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return ErrIDRequired
	}
	if c.Progress < 0 || c.Progress > 100 {
		return ErrProgressRange
	}
	return nil
}

func (c SetCreationField) Validate() error {
	if c.Field != FieldName && c.Field != FieldSecret {
		return ErrUnknownField
	}
	return nil
}

func (c SetVerificationDigit) Validate() error {
	if c.Index < 0 || c.Index >= CodeLength {
		return ErrDigitIndex
	}
	if c.Value == "" {
		return nil
	}
	if len(c.Value) != 1 || c.Value[0] < '0' || c.Value[0] > '9' {
		return ErrDigitValue
	}
	return nil
}

func (c SetVerificationErrors) Validate() error { return validateErrors(c.Errors, false) }
func (c VerificationFailed) Validate() error    { return validateErrors(c.Errors, true) }

func validateErrors(errs map[string]string, required bool) error {
	if required && len(errs) == 0 {
		return ErrErrorsRequired
	}
	for key := range errs {
		switch key {
		case FieldName, FieldSecret, FieldCode, FieldGeneral:
		default:
			return ErrUnknownErrorKey
		}
	}
	return nil
}

func Transition(s State, cmd Command) State {
	switch c := cmd.(type) {
	case SelectCourse:
		s.SelectedCourse = ""
		if s.courseIndex(c.ID) >= 0 {
			s.SelectedCourse = c.ID
		}
	case SelectLevel:
		s.SelectedLevel = c.ID
	case Enroll:
		return s.enroll(c)
	case UpdateProgress:
		return s.updateProgress(c)
	case SetCreationField:
		s.Creation = s.Creation.clone()
		switch c.Field {
		case FieldName:
			s.Creation.Name = c.Value
		case FieldSecret:
			s.Creation.Secret = c.Value
		}
		delete(s.Creation.Errors, c.Field)
	case SetVerificationDigit:
		s.Creation = s.Creation.clone()
		s.Creation.Code[c.Index] = c.Value
		delete(s.Creation.Errors, FieldCode)
	case SetVerificationErrors:
		s.Creation = s.Creation.clone()
		s.Creation.Errors = maps.Clone(c.Errors)
		if s.Creation.Errors == nil {
			s.Creation.Errors = map[string]string{}
		}
	case StartVerification:
		s.Creation = s.Creation.clone()
		s.Creation.Verifying = true
		s.Creation.Status = StatusPending
		s.Creation.Errors = map[string]string{}
	case VerificationSucceeded:
		s.Creation = Creation{Name: s.Creation.Name, Status: StatusSuccess, Errors: map[string]string{}}
	case VerificationFailed:
		s.Creation = s.Creation.clone()
		s.Creation.Verifying = false
		s.Creation.Status = StatusError
		s.Creation.Errors = maps.Clone(c.Errors)
	case ResetVerification:
		s.Creation = s.Creation.clone()
		s.Creation.Code = [CodeLength]string{}
		s.Creation.Verifying = false
		s.Creation.Status = StatusIdle
		s.Creation.Errors = map[string]string{}
	case ClearCourseErrors:
		s.Creation = s.Creation.clone()
		s.Creation.Errors = map[string]string{}
	}
	return s
}

func (c Creation) clone() Creation {
	c.Errors = maps.Clone(c.Errors)
	if c.Errors == nil {
		c.Errors = map[string]string{}
	}
	return c
}

func (s State) enroll(c Enroll) State {
	s.Catalog = s.cloneCatalog()
	touched := s.forEachTarget(c.ID, c.CourseID, func(course *Course) { course.Enrolled = true },
		func(level *Level) { level.Enrolled = true })
	s.Enrolled = addUnique(s.Enrolled, c.ID)
	if touched.levelInCourse != "" {
		s.Catalog[s.courseIndex(touched.levelInCourse)].Enrolled = true
		s.Enrolled = addUnique(s.Enrolled, touched.levelInCourse)
	}
	return s
}

func (s State) updateProgress(c UpdateProgress) State {
	s.Catalog = s.cloneCatalog()
	s.forEachTarget(c.ID, c.CourseID, func(course *Course) { course.Progress = c.Progress },
		func(level *Level) { level.Progress = c.Progress })
	return s
}

type targets struct {
	// levelInCourse is the owning course of a level matched under
	// ScopeCourse.
	levelInCourse string
}

// forEachTarget applies onCourse to the course with ID id and onLevel to
// every level addressed by (courseID, id) under the state's scope. The
// catalog must already be a private copy.
func (s State) forEachTarget(id, courseID string, onCourse func(*Course), onLevel func(*Level)) targets {
	var out targets
	if idx := s.courseIndex(id); idx >= 0 {
		onCourse(&s.Catalog[idx])
	}
	switch s.Scope {
	case ScopeGlobal:
		for i := range s.Catalog {
			for j := range s.Catalog[i].Levels {
				if s.Catalog[i].Levels[j].ID == id {
					onLevel(&s.Catalog[i].Levels[j])
				}
			}
		}
	default:
		idx := s.courseIndex(courseID)
		if idx < 0 {
			return out
		}
		for j := range s.Catalog[idx].Levels {
			if s.Catalog[idx].Levels[j].ID == id {
				onLevel(&s.Catalog[idx].Levels[j])
				out.levelInCourse = courseID
			}
		}
	}
	return out
}

func (s State) cloneCatalog() []Course {
	list := slices.Clone(s.Catalog)
	for i := range list {
		list[i].Levels = slices.Clone(list[i].Levels)
	}
	return list
}

func (s State) courseIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(s.Catalog, func(c Course) bool { return c.ID == id })
}

// Course returns the catalog entry with id.
func (s State) Course(id string) (Course, bool) {
	idx := s.courseIndex(id)
	if idx < 0 {
		return Course{}, false
	}
	return s.Catalog[idx], true
}

// Level returns the level id of course courseID.
func (s State) Level(courseID, id string) (Level, bool) {
	course, ok := s.Course(courseID)
	if !ok {
		return Level{}, false
	}
	idx := slices.IndexFunc(course.Levels, func(l Level) bool { return l.ID == id })
	if idx < 0 {
		return Level{}, false
	}
	return course.Levels[idx], true
}

func addUnique(set []string, id string) []string {
	if slices.Contains(set, id) {
		return set
	}
	next := make([]string, 0, len(set)+1)
	next = append(next, set...)
	return append(next, id)
}
