package dashboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/coursedash/dashboard/internal/app/bus"
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

type decodeFunc func(json.RawMessage) (bus.Command, error)

func decoder[C bus.Command]() decodeFunc {
	return func(raw json.RawMessage) (bus.Command, error) {
		var cmd C
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return cmd, nil
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}

func entry[C bus.Command]() (string, decodeFunc) {
	var zero C
	return zero.CommandType(), decoder[C]()
}

func registry(entries ...func() (string, decodeFunc)) map[string]decodeFunc {
	m := make(map[string]decodeFunc, len(entries))
	for _, register := range entries {
		commandType, fn := register()
		m[commandType] = fn
	}
	return m
}

// viewDecoders are the commands a view may send over HTTP or the bus.
var viewDecoders = registry(
	entry[auth.Logout], entry[auth.UpdateProfile], entry[auth.SetLanguage], entry[auth.ClearError],

	entry[courses.SelectCourse], entry[courses.SelectLevel], entry[courses.Enroll],
	entry[courses.UpdateProgress], entry[courses.SetCreationField], entry[courses.SetVerificationDigit],
	entry[courses.ClearCourseErrors],

	entry[ui.SetActiveView], entry[ui.ToggleMobileMenu], entry[ui.SetMobileMenu],
	entry[ui.ToggleCoursesExpanded], entry[ui.SetCoursesExpanded], entry[ui.SetSearchQuery],
	entry[ui.SetSearchFocused], entry[ui.ToggleTheme], entry[ui.SetTheme],
	entry[ui.ToggleSidebar], entry[ui.SetSidebarCollapsed],

	entry[notifications.Add], entry[notifications.MarkRead], entry[notifications.MarkAllRead],

	entry[stories.ToggleLike],

	entry[tasks.Add], entry[tasks.ToggleStatus],

	entry[achievements.UpdateProgress], entry[achievements.Earn],
)

// workflowDecoders are issued only by the orchestrators and the sweep. They
// drive state machines whose guards live outside the store, so they never
// cross the wire.
var workflowDecoders = registry(
	entry[auth.LoginStarted], entry[auth.LoginSucceeded], entry[auth.LoginFailed],

	entry[courses.SetVerificationErrors], entry[courses.StartVerification], entry[courses.VerificationSucceeded],
	entry[courses.VerificationFailed], entry[courses.ResetVerification],

	entry[meetings.StartJoining], entry[meetings.FinishJoining], entry[meetings.CancelJoining], entry[meetings.SetLive],

	entry[stories.StartJoining], entry[stories.FinishJoining], entry[stories.CancelJoining],
	entry[stories.StartDownload], entry[stories.UpdateDownloadProgress], entry[stories.FinishDownload],
	entry[stories.CancelDownload],

	entry[tasks.MarkOverdue],
)

// ErrWorkflowCommand marks a known command type that only a workflow may
// dispatch.
var ErrWorkflowCommand = errors.New("command is issued by workflows only")

// DecodeCommand turns a wire command into its typed form. Unknown types,
// workflow-only types and malformed payloads are configuration errors.
func DecodeCommand(commandType string, payload json.RawMessage) (bus.Command, error) {
	fn, ok := viewDecoders[commandType]
	if !ok {
		if _, internal := workflowDecoders[commandType]; internal {
			return nil, apperr.WrapConfiguration(ErrWorkflowCommand, "command type %q", commandType)
		}
		return nil, apperr.Configuration("unknown command type %q", commandType)
	}
	cmd, err := fn(payload)
	if err != nil {
		return nil, apperr.WrapConfiguration(err, "decode payload for %s", commandType)
	}
	return cmd, nil
}

// Stamp fills the fields a caller may leave to the server: identifiers of
// new tasks and notifications, their timestamps, and the time of sweeps and
// achievement changes.
func Stamp(cmd bus.Command, now time.Time, newID func() string) bus.Command {
	switch c := cmd.(type) {
	case tasks.Add:
		if c.Task.ID == "" {
			c.Task.ID = newID()
		}
		if c.Task.CreatedAt.IsZero() {
			c.Task.CreatedAt = now
		}
		return c
	case tasks.MarkOverdue:
		if c.Now.IsZero() {
			c.Now = now
		}
		return c
	case notifications.Add:
		if c.Notification.ID == "" {
			c.Notification.ID = newID()
		}
		if c.Notification.Timestamp.IsZero() {
			c.Notification.Timestamp = now
		}
		return c
	case achievements.UpdateProgress:
		if c.At.IsZero() {
			c.At = now
		}
		return c
	case achievements.Earn:
		if c.At.IsZero() {
			c.At = now
		}
		return c
	}
	return cmd
}
