package messaging

import (
	"errors"

	"github.com/nats-io/nats.go"
)

const (
	CommandsStream = "DASHBOARD_COMMANDS"
	EventsStream   = "DASHBOARD_EVENTS"

	CommandSubjects = "dashboard.command.>"
	EventSubjects   = "dashboard.event.>"
)

// StreamConfigs lists the streams the dashboard needs. Both are memory
// backed: nothing outlives the process.
func StreamConfigs() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:      CommandsStream,
			Subjects:  []string{CommandSubjects},
			Retention: nats.WorkQueuePolicy,
			Storage:   nats.MemoryStorage,
			Replicas:  1,
		},
		{
			Name:      EventsStream,
			Subjects:  []string{EventSubjects},
			Retention: nats.LimitsPolicy,
			Storage:   nats.MemoryStorage,
			MaxMsgs:   10_000,
			Replicas:  1,
		},
	}
}

// StreamManager is the part of nats.JetStreamContext EnsureStreams uses.
type StreamManager interface {
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// EnsureStreams creates any missing dashboard stream.
func EnsureStreams(js StreamManager) error {
	for _, cfg := range StreamConfigs() {
		if _, err := js.StreamInfo(cfg.Name); err != nil {
			if !errors.Is(err, nats.ErrStreamNotFound) {
				return err
			}
			if _, addErr := js.AddStream(&cfg); addErr != nil {
				return addErr
			}
		}
	}
	return nil
}
