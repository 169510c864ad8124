// Package mirror connects the store to the message bus: every applied
// command is published as a DashboardEvent, and commands arriving on
// dashboard.command.> are dispatched into the store.
package mirror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nuid"

	"github.com/coursedash/dashboard/internal/app/bus"
	"github.com/coursedash/dashboard/internal/app/dashboard"
	"github.com/coursedash/dashboard/internal/contracts"
	"github.com/coursedash/dashboard/internal/platform/apperr"
	"github.com/coursedash/dashboard/internal/platform/logfields"
	"github.com/coursedash/dashboard/internal/platform/metrics"
	"github.com/coursedash/dashboard/internal/platform/natsutil"
)

var ErrInvalidCommandPayload = errors.New("invalid command payload")

type PublishFunc func(subject string, payload []byte) error

type DispatchFunc func(cmd bus.Command) error

type Service struct {
	Publish  PublishFunc
	Dispatch DispatchFunc
	Now      func() time.Time
	NewID    func() string
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
}

func NewService(publish PublishFunc, dispatch DispatchFunc) *Service {
	return &Service{
		Publish:  publish,
		Dispatch: dispatch,
		Now:      func() time.Time { return time.Now().UTC() },
		NewID:    nuid.Next,
		Logger:   slog.Default(),
	}
}

// Observe is a bus observer. Publish failures are logged and counted; they
// never fail the dispatch.
func (s *Service) Observe(applied bus.Applied) {
	payload, err := json.Marshal(applied.Command)
	if err == nil {
		event := contracts.DashboardEvent{
			EventID:     s.NewID(),
			Partition:   applied.Partition,
			CommandType: applied.Command.CommandType(),
			Version:     applied.Version,
			Payload:     payload,
			OccurredAt:  s.Now(),
		}
		var body []byte
		if body, err = json.Marshal(event); err == nil {
			err = s.Publish(EventSubject(applied.Partition), body)
		}
	}
	if err != nil {
		s.Metrics.MirrorFailed()
		s.Logger.Warn("mirror publish failed",
			logfields.Subject(EventSubject(applied.Partition)),
			logfields.Command(applied.Command.CommandType()),
			logfields.Error(err))
	}
}

// Handle decodes a command envelope from the bus and dispatches it.
func (s *Service) Handle(subject string, payload []byte) error {
	var envelope contracts.CommandEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ErrInvalidCommandPayload
	}
	if envelope.Type == "" {
		envelope.Type = CommandTypeFromSubject(subject)
	}
	cmd, err := dashboard.DecodeCommand(envelope.Type, envelope.Payload)
	if err != nil {
		return err
	}
	return s.Dispatch(dashboard.Stamp(cmd, s.Now(), s.NewID))
}

// Disposition maps a Handle result onto how the message is settled:
// malformed or unknown commands are dropped, a closed store asks for
// redelivery elsewhere.
func Disposition(err error) natsutil.Disposition {
	switch {
	case err == nil:
		return natsutil.Ack
	case errors.Is(err, ErrInvalidCommandPayload),
		apperr.CategoryOf(err) == apperr.CategoryConfiguration:
		return natsutil.Term
	default:
		return natsutil.Nak
	}
}

func EventSubject(partition string) string {
	return "dashboard.event." + partition
}

// CommandSubject maps "tasks/add" to "dashboard.command.tasks.add".
func CommandSubject(commandType string) string {
	return "dashboard.command." + strings.ReplaceAll(commandType, "/", ".")
}

// CommandTypeFromSubject is the inverse of CommandSubject. It returns "" for
// subjects outside dashboard.command.
func CommandTypeFromSubject(subject string) string {
	rest, ok := strings.CutPrefix(subject, "dashboard.command.")
	if !ok {
		return ""
	}
	partition, name, ok := strings.Cut(rest, ".")
	if !ok {
		return ""
	}
	return partition + "/" + name
}
