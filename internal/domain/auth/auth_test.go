package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func signedIn() State {
	return Initial(&Profile{ID: "1", Name: "Salman", Email: "salman@example.com", Language: "EN", Role: "Student"})
}

func TestInitial_CanonicalizesLanguage(t *testing.T) {
	require.Equal(t, "en", signedIn().Profile.Language)
	require.False(t, Initial(nil).Authenticated)
}

func TestLoginFlow(t *testing.T) {
	s := Transition(Initial(nil), LoginStarted{})
	require.True(t, s.Loading)

	s = Transition(s, LoginFailed{Message: "Invalid credentials"})
	require.False(t, s.Loading)
	require.False(t, s.Authenticated)
	require.Equal(t, "Invalid credentials", s.Error)

	s = Transition(s, LoginStarted{})
	require.Empty(t, s.Error)
	s = Transition(s, LoginSucceeded{Profile: Profile{ID: "2", Name: "Ana", Language: "pt-br"}})
	require.True(t, s.Authenticated)
	require.False(t, s.Loading)
	require.Equal(t, "pt-BR", s.Profile.Language)

	s = Transition(s, Logout{})
	require.Nil(t, s.Profile)
	require.False(t, s.Authenticated)
}

func TestUpdateProfile_MergesAndCopies(t *testing.T) {
	prior := signedIn()
	name := "Sal"
	s := Transition(prior, UpdateProfile{Name: &name})
	require.Equal(t, "Sal", s.Profile.Name)
	require.Equal(t, "salman@example.com", s.Profile.Email)
	require.Equal(t, "Salman", prior.Profile.Name)

	signedOut := Transition(Initial(nil), UpdateProfile{Name: &name})
	require.Nil(t, signedOut.Profile)
}

func TestSetLanguage(t *testing.T) {
	s := Transition(signedIn(), SetLanguage{Tag: "FR"})
	require.Equal(t, "fr", s.Profile.Language)
	require.ErrorIs(t, SetLanguage{Tag: "not a tag!"}.Validate(), ErrInvalidLanguage)
}

func TestValidate(t *testing.T) {
	require.ErrorIs(t, LoginSucceeded{}.Validate(), ErrProfileIDRequired)
	require.ErrorIs(t, LoginFailed{}.Validate(), ErrMessageRequired)
	require.ErrorIs(t, UpdateProfile{}.Validate(), ErrEmptyUpdate)
	require.NoError(t, SetLanguage{Tag: "en-US"}.Validate())
}
