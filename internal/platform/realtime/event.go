package realtime

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of row change that occurred.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// EventMask selects which change kinds a subscription cares about.
type EventMask uint8

const (
	MaskInsert EventMask = 1 << iota
	MaskUpdate
	MaskDelete

	MaskAll = MaskInsert | MaskUpdate | MaskDelete
)

// Matches reports whether the mask covers the given event type.
func (m EventMask) Matches(t EventType) bool {
	switch t {
	case EventInsert:
		return m&MaskInsert != 0
	case EventUpdate:
		return m&MaskUpdate != 0
	case EventDelete:
		return m&MaskDelete != 0
	}
	return false
}

// Event is a table change notification fanned out to websocket clients and
// in-process bridge subscriptions.
type Event struct {
	Table     string          `json:"table"`
	Type      EventType       `json:"type"`
	RowID     string          `json:"rowId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventPublisher is implemented by the Hub; domain services publish a
// change event after every successful write.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
