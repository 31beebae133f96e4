package models

import "time"

// EventType names an alert lifecycle or level change.
type EventType string

const (
	EventAlertCreated  EventType = "alert.created"
	EventAlertBaseline EventType = "alert.baseline"
	EventAlertFired    EventType = "alert.fired"
	EventAlertExpired  EventType = "alert.expired"
	EventLevelChanged  EventType = "level.changed"
)

// Event is published to live subscribers and, when enabled, to Kafka.
type Event struct {
	Type EventType `json:"type"`

	// Alert snapshot after the change; nil for level events
	Alert *Alert `json:"alert,omitempty"`

	// Occupancy level observed when the event was produced
	Level Level `json:"level"`

	At time.Time `json:"at"`
}

// NewAlertEvent copies alert so the event is immune to later mutation.
func NewAlertEvent(typ EventType, alert Alert, level Level, at time.Time) Event {
	return Event{Type: typ, Alert: &alert, Level: level, At: at}
}
