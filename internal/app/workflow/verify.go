package workflow

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/coursedash/dashboard/internal/domain/courses"
	"github.com/coursedash/dashboard/internal/platform/apperr"
	"github.com/coursedash/dashboard/internal/platform/metrics"
)

const WorkflowVerify = "verify"

var (
	ErrInFlight     = errors.New("verification already in progress")
	ErrCodeRejected = errors.New("verification code rejected")
	ErrSuperseded   = errors.New("verification superseded by resend")
)

// User-visible verification messages.
const (
	MsgNameRequired   = "Course name is required"
	MsgSecretRequired = "Password is required"
	MsgSecretTooShort = "Password must be at least 6 characters"
	MsgCodeIncomplete = "Please enter the complete 6-digit code"
	MsgCodeRejected   = "Invalid verification code. Please try again."
	MsgGeneralFailure = "Something went wrong. Please try again."
)

// Request is what gets verified.
type Request struct {
	Name   string `validate:"notblank"`
	Secret string `validate:"required,min=6"`
	Code   string `validate:"len=6,digits"`

	attempt uint64
}

// Decider is the verification backend. It returns nil to accept,
// ErrCodeRejected to reject the code, or any other error for a general
// failure.
type Decider func(ctx context.Context, req Request) error

// AlwaysAccept accepts every request.
func AlwaysAccept(context.Context, Request) error { return nil }

// RandomDecider accepts a request with probability successRate.
func RandomDecider(successRate float64, rng *rand.Rand) Decider {
	var mu sync.Mutex
	return func(ctx context.Context, _ Request) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		mu.Lock()
		roll := rng.Float64()
		mu.Unlock()
		if roll < successRate {
			return nil
		}
		return ErrCodeRejected
	}
}

// Verifier runs the course-creation verification: validate, go pending,
// wait one simulated round trip, then resolve to success or error.
type Verifier struct {
	Store   Store
	Clock   clockwork.Clock
	Delay   time.Duration
	Decide  Decider
	Logger  *slog.Logger
	Metrics *metrics.Recorder

	mu       sync.Mutex
	inFlight bool
	attempt  uint64
	cancel   context.CancelFunc

	validateOnce sync.Once
	validate     *validator.Validate
}

func NewVerifier(store Store, clock clockwork.Clock, delay time.Duration, decide Decider) *Verifier {
	if decide == nil {
		decide = AlwaysAccept
	}
	return &Verifier{Store: store, Clock: clock, Delay: delay, Decide: decide}
}

func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("digits", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	})
	return v
}

// Check returns one message per invalid field, keyed like the creation
// session errors. An empty map means the request is valid.
func (v *Verifier) Check(req Request) map[string]string {
	v.validateOnce.Do(func() { v.validate = newFormValidator() })

	fields := map[string]string{}
	err := v.validate.Struct(req)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fields
	}
	for _, fe := range verrs {
		switch fe.Field() {
		case "Name":
			fields[courses.FieldName] = MsgNameRequired
		case "Secret":
			if fe.Tag() == "required" {
				fields[courses.FieldSecret] = MsgSecretRequired
			} else {
				fields[courses.FieldSecret] = MsgSecretTooShort
			}
		case "Code":
			fields[courses.FieldCode] = MsgCodeIncomplete
		}
	}
	return fields
}

// Begin validates the form in the store and enters the pending state. A
// validation failure goes straight to the error state and returns
// *apperr.ValidationError.
func (v *Verifier) Begin(ctx context.Context) (Request, error) {
	obs := newObserver(WorkflowVerify, v.Logger, v.Metrics, v.Clock)
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.inFlight {
		return Request{}, ErrInFlight
	}

	creation := v.Store.Snapshot().Courses.Creation
	if creation.Status == courses.StatusPending {
		return Request{}, ErrInFlight
	}
	req := Request{Name: creation.Name, Secret: creation.Secret, Code: creation.CodeString()}

	if fields := v.Check(req); len(fields) > 0 {
		if _, err := v.Store.Dispatch(courses.VerificationFailed{Errors: fields}); err != nil {
			return Request{}, err
		}
		verr := apperr.NewValidation(fields)
		obs.done(ctx, OutcomeInvalid, v.Clock.Now(), verr)
		return Request{}, verr
	}
	if _, err := v.Store.Dispatch(courses.StartVerification{}); err != nil {
		return Request{}, err
	}
	v.inFlight = true
	v.attempt++
	req.attempt = v.attempt
	return req, nil
}

// Complete waits for the round trip and resolves the pending verification.
// If ctx is cancelled first, or Resend supersedes the attempt, nothing more
// is dispatched.
func (v *Verifier) Complete(ctx context.Context, req Request) error {
	started := v.Clock.Now()
	obs := newObserver(WorkflowVerify, v.Logger, v.Metrics, v.Clock)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	v.mu.Lock()
	if !v.inFlight || req.attempt != v.attempt {
		v.mu.Unlock()
		obs.done(ctx, OutcomeCancelled, started, ErrSuperseded)
		return ErrSuperseded
	}
	v.cancel = cancel
	v.mu.Unlock()
	defer func() {
		v.mu.Lock()
		if v.attempt == req.attempt {
			v.inFlight = false
			v.cancel = nil
		}
		v.mu.Unlock()
	}()

	if err := sleep(ctx, v.Clock, v.Delay); err != nil {
		obs.done(ctx, OutcomeCancelled, started, err)
		return err
	}
	decision := v.Decide(ctx, req)
	if err := ctx.Err(); err != nil {
		obs.done(ctx, OutcomeCancelled, started, err)
		return err
	}

	if decision == nil {
		if err := v.resolve(ctx, req, courses.VerificationSucceeded{}); err != nil {
			obs.done(ctx, outcomeOf(err), started, err)
			return err
		}
		obs.done(ctx, OutcomeSuccess, started, nil)
		return nil
	}

	field, message, outcome := courses.FieldGeneral, MsgGeneralFailure, OutcomeFailed
	if errors.Is(decision, ErrCodeRejected) {
		field, message, outcome = courses.FieldCode, MsgCodeRejected, OutcomeRejected
	}
	if err := v.resolve(ctx, req, courses.VerificationFailed{Errors: map[string]string{field: message}}); err != nil {
		obs.done(ctx, outcomeOf(err), started, err)
		return err
	}
	failure := apperr.NewWorkflowFailure(WorkflowVerify, message, decision)
	obs.done(ctx, outcome, started, failure)
	return failure
}

// resolve dispatches the outcome only while req is still the live attempt.
// The check and the dispatch share v.mu so a concurrent Resend lands either
// before both or after both.
func (v *Verifier) resolve(ctx context.Context, req Request, cmd courses.Command) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if req.attempt != v.attempt {
		return ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := v.Store.Dispatch(cmd)
	return err
}

// Submit runs Begin and Complete in the caller's goroutine.
func (v *Verifier) Submit(ctx context.Context) error {
	req, err := v.Begin(ctx)
	if err != nil {
		return err
	}
	return v.Complete(ctx, req)
}

// Resend resets the code slots and errors and returns the session to idle.
// A round trip still in flight is cancelled and its result discarded.
func (v *Verifier) Resend(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.attempt++
	v.inFlight = false
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	_, err := v.Store.Dispatch(courses.ResetVerification{})
	return err
}
