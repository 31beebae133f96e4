package models

import (
	"strconv"
	"time"
)

// Envelope wraps an Event with internal metadata for publishing
type Envelope struct {
	// Original event
	Event *Event `json:"event"`

	// Internal processing metadata
	EmittedAt    time.Time `json:"emitted_at"`
	Node         string    `json:"node"`
	BatchID      string    `json:"batch_id,omitempty"`
	BatchIndex   int       `json:"batch_index,omitempty"`
	RetryCount   int       `json:"retry_count"`
	PartitionKey string    `json:"partition_key"`
}

// NewEnvelope creates a new envelope wrapping an event
func NewEnvelope(event *Event, node string) *Envelope {
	key := "level"
	if event.Alert != nil {
		key = strconv.FormatInt(event.Alert.ID, 10) // per-alert ordering
	}
	return &Envelope{
		Event:        event,
		EmittedAt:    time.Now().UTC(),
		Node:         node,
		RetryCount:   0,
		PartitionKey: key,
	}
}

// WithBatch sets batch metadata on the envelope
func (e *Envelope) WithBatch(batchID string, index int) *Envelope {
	e.BatchID = batchID
	e.BatchIndex = index
	return e
}
