package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/coursedash/dashboard/internal/domain/auth"
	"github.com/coursedash/dashboard/internal/platform/metrics"
)

const WorkflowLogin = "login"

var ErrInvalidCredentials = errors.New("invalid credentials")

const MsgInvalidCredentials = "Invalid email or password"

// Account is a profile with its bcrypt password hash.
type Account struct {
	Profile      auth.Profile
	PasswordHash []byte
}

// NewAccount hashes password at cost. Tests pass bcrypt.MinCost.
func NewAccount(profile auth.Profile, password string, cost int) (Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return Account{}, err
	}
	return Account{Profile: profile, PasswordHash: hash}, nil
}

// Authenticator is the in-process login backend.
type Authenticator struct {
	Store   Store
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	accounts map[string]Account
}

func NewAuthenticator(store Store, clock clockwork.Clock, accounts ...Account) *Authenticator {
	byEmail := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		byEmail[normalizeEmail(a.Profile.Email)] = a
	}
	return &Authenticator{Store: store, Clock: clock, accounts: byEmail}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login dispatches LoginStarted and then LoginSucceeded or LoginFailed.
func (a *Authenticator) Login(ctx context.Context, email, password string) error {
	started := a.Clock.Now()
	obs := newObserver(WorkflowLogin, a.Logger, a.Metrics, a.Clock)
	if _, err := a.Store.Dispatch(auth.LoginStarted{}); err != nil {
		return err
	}

	account, ok := a.accounts[normalizeEmail(email)]
	if !ok || strings.TrimSpace(password) == "" ||
		bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(password)) != nil {
		if _, err := a.Store.Dispatch(auth.LoginFailed{Message: MsgInvalidCredentials}); err != nil {
			return err
		}
		obs.done(ctx, OutcomeRejected, started, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	if _, err := a.Store.Dispatch(auth.LoginSucceeded{Profile: account.Profile}); err != nil {
		return err
	}
	obs.done(ctx, OutcomeSuccess, started, nil)
	return nil
}

func (a *Authenticator) Logout(ctx context.Context) error {
	_, err := a.Store.Dispatch(auth.Logout{})
	return err
}
