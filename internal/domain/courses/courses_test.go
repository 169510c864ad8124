package courses

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func catalog() []Course {
	return []Course{
		{ID: "filmmaking", Name: "Filmmaking", Levels: []Level{
			{ID: "basic", Name: "Basic"},
			{ID: "advanced", Name: "Advanced"},
		}},
		{ID: "english", Name: "English Grammar", Levels: []Level{
			{ID: "basic", Name: "Basic"},
		}},
	}
}

func TestEnroll_TwiceIsIdempotent(t *testing.T) {
	s := Initial(catalog(), nil, "", ScopeCourse)
	cmd := Enroll{ID: "basic", CourseID: "filmmaking"}

	s = Transition(s, cmd)
	s = Transition(s, cmd)

	count := 0
	for _, id := range s.Enrolled {
		if id == "basic" {
			count++
		}
	}
	require.Equal(t, 1, count)

	course, _ := s.Course("filmmaking")
	require.True(t, course.Enrolled)
	level, _ := s.Level("filmmaking", "basic")
	require.True(t, level.Enrolled)

	other, _ := s.Level("english", "basic")
	require.False(t, other.Enrolled, "per-course scope leaves same-named levels alone")
}

func TestEnroll_LegacyGlobalScope(t *testing.T) {
	s := Initial(catalog(), nil, "", ScopeGlobal)
	s = Transition(s, Enroll{ID: "basic"})

	a, _ := s.Level("filmmaking", "basic")
	b, _ := s.Level("english", "basic")
	require.True(t, a.Enrolled)
	require.True(t, b.Enrolled)
	require.Equal(t, []string{"basic"}, s.Enrolled)

	course, _ := s.Course("filmmaking")
	require.False(t, course.Enrolled)
}

func TestEnroll_CourseByID(t *testing.T) {
	s := Transition(Initial(catalog(), nil, "", ScopeCourse), Enroll{ID: "english"})
	course, _ := s.Course("english")
	require.True(t, course.Enrolled)
	require.Equal(t, []string{"english"}, s.Enrolled)
}

func TestUpdateProgress_Scopes(t *testing.T) {
	scoped := Transition(Initial(catalog(), nil, "", ScopeCourse), UpdateProgress{ID: "basic", CourseID: "english", Progress: 40})
	a, _ := scoped.Level("filmmaking", "basic")
	b, _ := scoped.Level("english", "basic")
	require.Equal(t, 0, a.Progress)
	require.Equal(t, 40, b.Progress)

	global := Transition(Initial(catalog(), nil, "", ScopeGlobal), UpdateProgress{ID: "basic", Progress: 40})
	a, _ = global.Level("filmmaking", "basic")
	b, _ = global.Level("english", "basic")
	require.Equal(t, 40, a.Progress)
	require.Equal(t, 40, b.Progress)
}

func TestTransition_DoesNotMutatePrior(t *testing.T) {
	prior := Initial(catalog(), nil, "", ScopeCourse)
	_ = Transition(prior, Enroll{ID: "basic", CourseID: "filmmaking"})
	_ = Transition(prior, SetVerificationErrors{Errors: map[string]string{FieldName: "x"}})

	level, _ := prior.Level("filmmaking", "basic")
	require.False(t, level.Enrolled)
	require.Empty(t, prior.Enrolled)
	require.Empty(t, prior.Creation.Errors)
}

func TestCreationSession_Lifecycle(t *testing.T) {
	s := Initial(catalog(), nil, "Filmmaker", ScopeCourse)
	s = Transition(s, SetCreationField{Field: FieldSecret, Value: "hunter22"})
	for i, d := range []string{"1", "2", "3", "4", "5", "6"} {
		s = Transition(s, SetVerificationDigit{Index: i, Value: d})
	}
	require.Equal(t, "123456", s.Creation.CodeString())

	s = Transition(s, StartVerification{})
	require.Equal(t, StatusPending, s.Creation.Status)
	require.True(t, s.Creation.Verifying)

	s = Transition(s, VerificationSucceeded{})
	require.Equal(t, StatusSuccess, s.Creation.Status)
	require.Empty(t, s.Creation.Errors)
	require.Equal(t, "Filmmaker", s.Creation.Name)
	require.Empty(t, s.Creation.Secret)
	require.Empty(t, s.Creation.CodeString())
}

func TestCreationSession_FailureAndReset(t *testing.T) {
	s := Initial(catalog(), nil, "", ScopeCourse)
	s = Transition(s, SetVerificationDigit{Index: 0, Value: "9"})
	s = Transition(s, VerificationFailed{Errors: map[string]string{FieldCode: "bad"}})
	require.Equal(t, StatusError, s.Creation.Status)
	require.Equal(t, "bad", s.Creation.Errors[FieldCode])

	s = Transition(s, SetVerificationDigit{Index: 1, Value: "1"})
	require.NotContains(t, s.Creation.Errors, FieldCode, "editing the code clears its error")

	s = Transition(s, VerificationFailed{Errors: map[string]string{FieldGeneral: "oops"}})
	s = Transition(s, ResetVerification{})
	require.Equal(t, StatusIdle, s.Creation.Status)
	require.Empty(t, s.Creation.Errors)
	require.Equal(t, [CodeLength]string{}, s.Creation.Code)
}

func TestSelectCourse(t *testing.T) {
	s := Transition(Initial(catalog(), nil, "", ScopeCourse), SelectCourse{ID: "english"})
	require.Equal(t, "english", s.SelectedCourse)
	s = Transition(s, SelectCourse{ID: "missing"})
	require.Empty(t, s.SelectedCourse)
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, Enroll{}.Validate(), ErrIDRequired)
	require.ErrorIs(t, UpdateProgress{ID: "x", Progress: 101}.Validate(), ErrProgressRange)
	require.ErrorIs(t, SetCreationField{Field: "image"}.Validate(), ErrUnknownField)
	require.ErrorIs(t, SetVerificationDigit{Index: 6, Value: "1"}.Validate(), ErrDigitIndex)
	require.ErrorIs(t, SetVerificationDigit{Index: 0, Value: "a"}.Validate(), ErrDigitValue)
	require.ErrorIs(t, SetVerificationDigit{Index: 0, Value: "12"}.Validate(), ErrDigitValue)
	require.NoError(t, SetVerificationDigit{Index: 5, Value: ""}.Validate())
	require.ErrorIs(t, VerificationFailed{}.Validate(), ErrErrorsRequired)
	require.ErrorIs(t, SetVerificationErrors{Errors: map[string]string{"image": "x"}}.Validate(), ErrUnknownErrorKey)
}
