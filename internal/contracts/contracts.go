package contracts

import (
	"encoding/json"
	"time"
)

// CommandEnvelope is the wire form of a dashboard command, used by the HTTP
// API and by the dashboard.command.> message subjects.
type CommandEnvelope struct {
	CommandID string          `json:"command_id,omitempty"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DashboardEvent is published once per applied command on
// dashboard.event.<partition>.
type DashboardEvent struct {
	EventID     string          `json:"event_id"`
	CommandID   string          `json:"command_id,omitempty"`
	Partition   string          `json:"partition"`
	CommandType string          `json:"command_type"`
	Version     uint64          `json:"version"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
